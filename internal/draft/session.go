package draft

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/models"
)

// Hooks are how a finished or abandoned draft hands control back to the
// orchestration layer. They run on the session goroutine.
type Hooks interface {
	DraftCompleted(ctx context.Context, state State)
	DraftTimedOut(ctx context.Context, state State, currentCaptain models.User)
}

type Msg interface{ isSessionMsg() }

type Pick struct {
	Actor        models.User
	TargetUserID string
	Reply        chan PickResult
}

func (Pick) isSessionMsg() {}

type Abandon struct{ Reason string }

func (Abandon) isSessionMsg() {}

type GetState struct{ Reply chan State }

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type timerFired struct{ gen int }

func (timerFired) isSessionMsg() {}

type PickResult struct {
	State  State
	Events []Event
	Err    error
}

// Session owns one channel's live draft. All mutation flows through the
// inbox; nothing else may touch the remaining pool.
type Session struct {
	inbox    chan Msg
	state    State
	hooks    Hooks
	idle     time.Duration
	timerGen int
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     func()
}

// NewSession starts the session goroutine with the idle timer armed. done
// runs exactly once when the session ends for any reason.
func NewSession(parent context.Context, state State, hooks Hooks, idle time.Duration, log *zap.Logger, done func()) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:  make(chan Msg, 16),
		state:  state,
		hooks:  hooks,
		idle:   idle,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   done,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	defer s.cancel()
	defer s.done()

	// A state that completed at seeding has no picks to wait for.
	if s.state.Done {
		s.hooks.DraftCompleted(s.ctx, s.state)
		return
	}

	s.primeTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Pick:
				events, newState, err := Apply(s.state, Command{
					Type:         CmdPick,
					ActorID:      msg.Actor.ID,
					TargetUserID: msg.TargetUserID,
				})
				if err != nil {
					msg.Reply <- PickResult{State: s.state, Err: err}
					break
				}
				s.state = newState
				msg.Reply <- PickResult{State: s.state, Events: events}
				if s.state.Done {
					s.hooks.DraftCompleted(s.ctx, s.state)
					return
				}
				s.primeTimer()

			case GetState:
				msg.Reply <- s.state.clone()

			case timerFired:
				// Stale fires from a superseded timer are dropped.
				if msg.gen != s.timerGen {
					break
				}
				s.log.Info("draft idle timeout",
					zap.String("channel", s.state.ChannelID),
					zap.String("captain", s.state.CurrentCaptain().ID))
				s.hooks.DraftTimedOut(s.ctx, s.state, s.state.CurrentCaptain())
				return

			case Abandon:
				s.log.Info("draft abandoned",
					zap.String("channel", s.state.ChannelID),
					zap.String("reason", msg.Reason))
				return

			case Shutdown:
				return
			}
		}
	}
}

func (s *Session) primeTimer() {
	s.timerGen++
	gen := s.timerGen
	time.AfterFunc(s.idle, func() {
		select {
		case s.inbox <- timerFired{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

package draft

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrDraftActive rejects a second draft trigger for a channel that already
// has a live session.
var ErrDraftActive = errors.New("draft already in progress for channel")

type registryMsg interface{ isRegistryMsg() }

type startSession struct {
	state State
	reply chan startReply
}

type getSession struct {
	channelID string
	reply     chan *Session
}

type removeSession struct{ channelID string }

type shutdownRegistry struct{}

func (startSession) isRegistryMsg()     {}
func (getSession) isRegistryMsg()       {}
func (removeSession) isRegistryMsg()    {}
func (shutdownRegistry) isRegistryMsg() {}

type startReply struct {
	session *Session
	err     error
}

// Registry owns every live draft session, keyed by channel id. Sessions
// deregister themselves when they end, so a channel can draft again.
type Registry struct {
	inbox    chan registryMsg
	sessions map[string]*Session
	hooks    Hooks
	idle     time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRegistry(parent context.Context, hooks Hooks, idle time.Duration, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan registryMsg, 64),
		sessions: make(map[string]*Session),
		hooks:    hooks,
		idle:     idle,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

// SetHooks must be called before any draft starts; it exists because the
// orchestration service and the registry reference each other.
func (r *Registry) SetHooks(h Hooks) { r.hooks = h }

// Start spins up a session for the state's channel, rejecting a second
// concurrent draft.
func (r *Registry) Start(state State) (*Session, error) {
	reply := make(chan startReply, 1)
	select {
	case r.inbox <- startSession{state: state, reply: reply}:
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
	res := <-reply
	return res.session, res.err
}

// Get returns the live session for a channel, or nil.
func (r *Registry) Get(channelID string) *Session {
	reply := make(chan *Session, 1)
	select {
	case r.inbox <- getSession{channelID: channelID, reply: reply}:
	case <-r.ctx.Done():
		return nil
	}
	return <-reply
}

// Abandon stops a channel's session if one is live.
func (r *Registry) Abandon(channelID, reason string) {
	if s := r.Get(channelID); s != nil {
		s.Inbox() <- Abandon{Reason: reason}
	}
}

func (r *Registry) Shutdown() {
	select {
	case r.inbox <- shutdownRegistry{}:
	case <-r.ctx.Done():
	}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case startSession:
				channelID := msg.state.ChannelID
				if r.sessions[channelID] != nil {
					msg.reply <- startReply{err: ErrDraftActive}
					break
				}
				s := NewSession(r.ctx, msg.state, r.hooks, r.idle, r.log, func() {
					select {
					case r.inbox <- removeSession{channelID: channelID}:
					case <-r.ctx.Done():
					}
				})
				r.sessions[channelID] = s
				msg.reply <- startReply{session: s}

			case getSession:
				msg.reply <- r.sessions[msg.channelID]

			case removeSession:
				delete(r.sessions, msg.channelID)

			case shutdownRegistry:
				for _, s := range r.sessions {
					s.Inbox() <- Shutdown{}
				}
				clear(r.sessions)
				r.cancel()
				return
			}
		}
	}
}

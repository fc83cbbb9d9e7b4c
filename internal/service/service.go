// Package service implements the lineup/queue/challenge/draft orchestration
// engine. Every external action lands here, mutates the stores through
// their conditional updates, re-evaluates readiness and emits notification
// obligations to the platform layer.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/draft"
	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

type Service struct {
	stores   *store.Stores
	drafts   *draft.Registry
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func New(stores *store.Stores, drafts *draft.Registry, notifier notify.Notifier, log *zap.Logger) *Service {
	s := &Service{
		stores:   stores,
		drafts:   drafts,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	drafts.SetHooks(s)
	return s
}

// notify delivers an obligation and logs delivery failures; the state
// transition being reported has already committed and is never rolled back.
func (s *Service) notify(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification delivery failed",
			zap.String("event", string(n.Event)),
			zap.Error(err))
	}
}

func (s *Service) ensureNotBanned(ctx context.Context, guildID, userID string) error {
	ban, err := s.stores.Bans.Find(ctx, guildID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ban.Active(s.now()) {
		return faults.Validationf("user is banned from matchmaking in this guild")
	}
	return nil
}

func (s *Service) getLineup(ctx context.Context, channelID string) (*models.Lineup, error) {
	lineup, err := s.stores.Lineups.Get(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("no lineup is configured for this channel")
	}
	return lineup, err
}

func (s *Service) getTeam(ctx context.Context, guildID string) (*models.Team, error) {
	team, err := s.stores.Teams.Get(ctx, guildID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("no team is registered for this guild")
	}
	return team, err
}

const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(idCharset))))
		if err != nil {
			code[i] = idCharset[0]
			continue
		}
		code[i] = idCharset[num.Int64()]
	}
	return string(code)
}

func newMatchID() string       { return randomCode(6) }
func newLobbyName() string     { return "PSL-" + randomCode(4) }
func newLobbyPassword() string { return randomCode(6) }

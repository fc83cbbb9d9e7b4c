package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// BanUser excludes a user from matchmaking actions in one guild, forever
// or until expiresAt.
func (s *Service) BanUser(ctx context.Context, guildID, userID, reason string, expiresAt *time.Time) error {
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return faults.Validationf("ban expiry is in the past")
	}
	ban := &models.Ban{GuildID: guildID, UserID: userID, Reason: reason, ExpiresAt: expiresAt, CreatedAt: s.now()}
	if err := s.stores.Bans.Put(ctx, ban); err != nil {
		return err
	}
	s.log.Info("user banned", zap.String("guild", guildID), zap.String("user", userID))
	return nil
}

// UnbanUser lifts a ban; lifting a ban that does not exist is a validation
// error, not a mutation.
func (s *Service) UnbanUser(ctx context.Context, guildID, userID string) error {
	err := s.stores.Bans.Delete(ctx, guildID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return faults.Validationf("that user is not banned")
	}
	return err
}

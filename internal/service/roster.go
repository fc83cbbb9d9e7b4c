package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// ConfigureLineup creates a channel's roster from the size/type template.
// The slot list is fixed from here on; only occupants change.
func (s *Service) ConfigureLineup(ctx context.Context, channelID, guildID string, size int, lineupType models.LineupType, visibility models.Visibility, autoSearch bool) (*models.Lineup, error) {
	if !models.ValidSize(size) {
		return nil, faults.Validationf("unsupported roster size %d", size)
	}
	if _, err := s.getTeam(ctx, guildID); err != nil {
		return nil, err
	}
	if existing, err := s.stores.Lineups.Get(ctx, channelID); err == nil && existing != nil {
		return nil, faults.Validationf("this channel already has a lineup")
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	lineup := models.NewLineup(channelID, guildID, size, lineupType, visibility, autoSearch)
	if err := s.stores.Lineups.Create(ctx, lineup); err != nil {
		return nil, err
	}
	s.log.Info("lineup configured",
		zap.String("channel", channelID),
		zap.Int("size", size),
		zap.String("type", string(lineupType)))
	return lineup, nil
}

// GetLineup returns the channel's roster for rendering.
func (s *Service) GetLineup(ctx context.Context, channelID string) (*models.Lineup, error) {
	return s.getLineup(ctx, channelID)
}

// SignUp puts a user into a named slot. A user already holding another slot
// in the same lineup is swapped in one transaction, never occupying both.
// Mercenaries are exempt from the one-slot rule.
func (s *Service) SignUp(ctx context.Context, channelID string, user models.User, roleName string, lineupNumber int) (*models.Lineup, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBanned(ctx, lineup.GuildID, user.ID); err != nil {
		return nil, err
	}
	if lineup.IsPicking {
		return nil, faults.Validationf("a draft is in progress, signups are closed")
	}
	if lineupNumber < 1 || lineupNumber > lineup.NumberOfSides() {
		return nil, faults.Validationf("this lineup has no side %d", lineupNumber)
	}
	target, ok := lineup.FindRole(roleName, lineupNumber)
	if !ok {
		return nil, faults.Validationf("no role named %s in this lineup", roleName)
	}
	if target.UserID != nil && *target.UserID == user.ID {
		return nil, faults.Validationf("you already occupy %s", target.Name)
	}

	if current, held := lineup.RoleOfUser(user.ID); held && !user.IsMerc() {
		err = s.stores.Lineups.Swap(ctx, channelID, current.Name, current.LineupNumber, target.Name, lineupNumber, user)
	} else {
		err = s.stores.Lineups.AssignIfEmpty(ctx, channelID, target.Name, lineupNumber, user)
	}
	if errors.Is(err, store.ErrConflict) {
		// Lost the race; surface the current truth instead of retrying.
		return nil, faults.Validationf("the %s slot is no longer available", target.Name)
	}
	if err != nil {
		return nil, err
	}

	lineup, err = s.stores.Lineups.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{channelID},
		Event:    notify.EventLineupUpdated,
		Message:  fmt.Sprintf("%s signed up as %s", user.Name, target.Name),
	})
	if err := s.afterRosterChange(ctx, lineup); err != nil {
		return nil, err
	}
	return s.stores.Lineups.Get(ctx, channelID)
}

// Leave vacates every slot a user holds in the channel. Leaving when not
// signed is a validation error, never a mutation.
func (s *Service) Leave(ctx context.Context, channelID string, user models.User) (*models.Lineup, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if lineup.IsPicking {
		return nil, faults.Validationf("a draft is in progress, leave is disabled")
	}
	err = s.stores.Lineups.RemoveUser(ctx, channelID, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("%s is not signed in this lineup", user.Name)
	}
	if err != nil {
		return nil, err
	}

	lineup, err = s.stores.Lineups.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{channelID},
		Event:    notify.EventPlayerLeft,
		Message:  fmt.Sprintf("%s left the lineup", user.Name),
	})
	if err := s.syncQueueEntry(ctx, lineup); err != nil {
		return nil, err
	}
	return lineup, nil
}

// ClearRole empties one slot regardless of occupant.
func (s *Service) ClearRole(ctx context.Context, channelID, roleName string, lineupNumber int) (*models.Lineup, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if _, ok := lineup.FindRole(roleName, lineupNumber); !ok {
		return nil, faults.Validationf("no role named %s in this lineup", roleName)
	}
	err = s.stores.Lineups.ClearRole(ctx, channelID, roleName, lineupNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("the %s slot is already empty", roleName)
	}
	if err != nil {
		return nil, err
	}
	lineup, err = s.stores.Lineups.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return lineup, s.syncQueueEntry(ctx, lineup)
}

// afterRosterChange re-evaluates the readiness predicates after a signup:
// full CAPTAINS lineups start their draft, full MIX lineups play an
// internal match, and ready auto-search lineups publish to the queue.
func (s *Service) afterRosterChange(ctx context.Context, lineup *models.Lineup) error {
	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		return err
	}

	switch {
	case lineup.Type == models.LineupTypeCaptains && !lineup.IsPicking && lineup.IsFullForDraft():
		return s.startDraft(ctx, lineup, team)

	case lineup.Type == models.LineupTypeMix && lineup.IsFullForDraft():
		return s.finalizeMix(ctx, lineup, team)
	}

	return s.syncQueueEntry(ctx, lineup)
}

// syncQueueEntry keeps a channel's queue entry honest after roster edits:
// refresh the by-value snapshot while the lineup stays ready, retract the
// entry if it no longer is. Reserved entries are left to the challenge flow.
func (s *Service) syncQueueEntry(ctx context.Context, lineup *models.Lineup) error {
	entry, err := s.stores.Queues.Get(ctx, lineup.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		if lineup.AutoSearch && lineup.IsAllowedToJoinQueue() {
			team, err := s.getTeam(ctx, lineup.GuildID)
			if err != nil {
				return err
			}
			return s.publish(ctx, lineup, team)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if entry.Reserved() {
		return nil
	}
	if !lineup.IsAllowedToJoinQueue() {
		if err := s.stores.Queues.Delete(ctx, lineup.ChannelID); err != nil {
			return err
		}
		s.notify(ctx, notify.Notification{
			Channels: []string{lineup.ChannelID},
			Event:    notify.EventSearchStopped,
			Message:  "lineup is no longer complete, search stopped",
		})
		return nil
	}
	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		return err
	}
	entry.Lineup = lineup.Snapshot(*team)
	return s.stores.Queues.Put(ctx, entry)
}

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

// StartSearch publishes the channel's lineup to the regional queue.
func (s *Service) StartSearch(ctx context.Context, channelID string, user models.User) (*models.LineupQueue, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBanned(ctx, lineup.GuildID, user.ID); err != nil {
		return nil, err
	}
	if _, signed := lineup.RoleOfUser(user.ID); !signed {
		return nil, faults.Validationf("only a signed player can start the search")
	}
	if !lineup.IsAllowedToJoinQueue() {
		return nil, faults.Validationf("the lineup is not complete enough to search")
	}
	if _, err := s.stores.Queues.Get(ctx, channelID); err == nil {
		return nil, faults.Validationf("this lineup is already searching")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.stores.Challenges.FindByChannel(ctx, channelID); err == nil {
		return nil, faults.Validationf("this channel is negotiating a challenge")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, lineup, team); err != nil {
		return nil, err
	}
	return s.stores.Queues.Get(ctx, channelID)
}

// StopSearch retracts the channel's queue entry.
func (s *Service) StopSearch(ctx context.Context, channelID string, user models.User) error {
	entry, err := s.stores.Queues.Get(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return faults.Validationf("this lineup is not searching")
	}
	if err != nil {
		return err
	}
	if entry.Reserved() {
		return faults.Validationf("a challenge is pending, cancel it first")
	}
	if err := s.stores.Queues.Delete(ctx, channelID); err != nil {
		return err
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{channelID},
		Event:    notify.EventSearchStopped,
		Message:  fmt.Sprintf("%s stopped the search", user.Name),
	})
	return nil
}

// ListAvailable returns the queue entries the channel could challenge:
// same region and size, unreserved, and visible to this guild.
func (s *Service) ListAvailable(ctx context.Context, channelID string) ([]models.LineupQueue, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		return nil, err
	}
	return s.stores.Queues.FindAvailable(ctx, team.Region, channelID, lineup.Size, lineup.GuildID)
}

// RegisterQueueMessage records the platform-layer message handles that
// announced a search, so they can be retracted later.
func (s *Service) RegisterQueueMessage(ctx context.Context, channelID string, handles []models.MessageHandle) error {
	if _, err := s.stores.Queues.Get(ctx, channelID); errors.Is(err, store.ErrNotFound) {
		return faults.Validationf("this lineup is not searching")
	} else if err != nil {
		return err
	}
	return s.stores.Queues.SetMessages(ctx, channelID, handles)
}

func (s *Service) publish(ctx context.Context, lineup *models.Lineup, team *models.Team) error {
	entry := &models.LineupQueue{
		ChannelID:  lineup.ChannelID,
		GuildID:    lineup.GuildID,
		Region:     team.Region,
		Size:       lineup.Size,
		Visibility: lineup.Visibility,
		Lineup:     lineup.Snapshot(*team),
		CreatedAt:  s.now(),
	}
	if err := s.stores.Queues.Put(ctx, entry); err != nil {
		return err
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{lineup.ChannelID},
		Event:    notify.EventTeamSearching,
		Message:  fmt.Sprintf("%s is now searching for a %dv%d opponent", team.Name, lineup.Size, lineup.Size),
	})
	if err := s.stores.Lineups.SetLastNotification(ctx, lineup.ChannelID, s.now()); err != nil {
		s.log.Warn("failed to record search announcement time",
			zap.String("channel", lineup.ChannelID), zap.Error(err))
	}
	return nil
}

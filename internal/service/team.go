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

// RegisterTeam creates or refreshes the guild's community record.
func (s *Service) RegisterTeam(ctx context.Context, guildID, name, region string) (*models.Team, error) {
	if name == "" || region == "" {
		return nil, faults.Validationf("team name and region are required")
	}
	team := &models.Team{GuildID: guildID, Name: name, Region: region}
	if err := s.stores.Teams.Upsert(ctx, team); err != nil {
		return nil, err
	}
	s.log.Info("team registered", zap.String("guild", guildID), zap.String("region", region))
	return team, nil
}

// RenameTeam updates the display name only.
func (s *Service) RenameTeam(ctx context.Context, guildID, name string) (*models.Team, error) {
	if name == "" {
		return nil, faults.Validationf("team name is required")
	}
	team, err := s.getTeam(ctx, guildID)
	if err != nil {
		return nil, err
	}
	team.Name = name
	if err := s.stores.Teams.Upsert(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// DeleteTeam removes the guild and cascades through its lineups, queue
// entries, challenges and bans. Paired challenge sides always get their
// reservations released; nothing stays half-orphaned.
func (s *Service) DeleteTeam(ctx context.Context, guildID string) error {
	challenges, err := s.stores.Challenges.FindByGuild(ctx, guildID)
	if err != nil {
		return err
	}
	for i := range challenges {
		if err := s.releaseChallenge(ctx, &challenges[i], "challenge cancelled: the team was removed"); err != nil {
			return err
		}
	}

	channels, err := s.stores.Lineups.ChannelsOfGuild(ctx, guildID)
	if err != nil {
		return err
	}
	for _, ch := range channels {
		s.drafts.Abandon(ch, "team deleted")
		if err := s.stores.Queues.Delete(ctx, ch); err != nil {
			return err
		}
		if err := s.stores.Lineups.Delete(ctx, ch); err != nil {
			return err
		}
	}
	if err := s.stores.Bans.DeleteByGuild(ctx, guildID); err != nil {
		return err
	}
	if err := s.stores.Teams.Delete(ctx, guildID); err != nil {
		return err
	}
	s.log.Info("team deleted", zap.String("guild", guildID), zap.Int("channels", len(channels)))
	return nil
}

// DeleteChannel tears one channel down: its draft, its side of any open
// challenge, its queue entry and its lineup.
func (s *Service) DeleteChannel(ctx context.Context, channelID string) error {
	s.drafts.Abandon(channelID, "channel deleted")

	challenge, err := s.stores.Challenges.FindByChannel(ctx, channelID)
	if err == nil {
		if err := s.releaseChallenge(ctx, challenge, "challenge cancelled: the channel was removed"); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := s.stores.Queues.Delete(ctx, channelID); err != nil {
		return err
	}
	if err := s.stores.Lineups.Delete(ctx, channelID); err != nil {
		return err
	}
	s.log.Info("channel deleted", zap.String("channel", channelID))
	return nil
}

// PurgeExpiredMatches removes matches older than the retention window.
func (s *Service) PurgeExpiredMatches(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.stores.Matches.DeleteExpired(ctx, s.now().Add(-olderThan))
}

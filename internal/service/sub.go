package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// RequestSub appends a standby replacement request to a finalized match,
// the only mutation a match record ever takes.
func (s *Service) RequestSub(ctx context.Context, matchID string, user models.User, roleName string) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBannedFromMatch(ctx, match, user.ID); err != nil {
		return nil, err
	}
	match.Subs = append(match.Subs, models.SubRequest{
		RoleName:    roleName,
		RequestedBy: user,
		CreatedAt:   s.now(),
	})
	if err := s.stores.Matches.SetSubs(ctx, matchID, match.Subs); err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Notification{
		Channels: matchChannels(match),
		Event:    notify.EventSubRequested,
		Message:  fmt.Sprintf("%s needs a sub for %s in match %s", user.Name, roleName, match.ID),
		Data:     map[string]any{"matchId": match.ID},
	})
	return match, nil
}

// AcceptSub fills the oldest unfilled sub request. Players already in the
// match cannot sub into it.
func (s *Service) AcceptSub(ctx context.Context, matchID string, user models.User) (*models.Match, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBannedFromMatch(ctx, match, user.ID); err != nil {
		return nil, err
	}
	if snapshotHasUser(match.FirstLineup, user.ID) ||
		(match.SecondLineup != nil && snapshotHasUser(*match.SecondLineup, user.ID)) {
		return nil, faults.Validationf("you are already playing in this match")
	}
	for _, sub := range match.Subs {
		if sub.AcceptedBy != nil && sub.AcceptedBy.ID == user.ID {
			return nil, faults.Validationf("you already accepted a sub slot in this match")
		}
	}

	filled := -1
	for i := range match.Subs {
		if match.Subs[i].AcceptedBy == nil {
			u := user
			match.Subs[i].AcceptedBy = &u
			filled = i
			break
		}
	}
	if filled < 0 {
		return nil, faults.Validationf("no open sub request on this match")
	}
	if err := s.stores.Matches.SetSubs(ctx, matchID, match.Subs); err != nil {
		return nil, err
	}
	s.notify(ctx, notify.Notification{
		Channels: matchChannels(match),
		Event:    notify.EventSubAccepted,
		Message:  fmt.Sprintf("%s subs in as %s for match %s", user.Name, match.Subs[filled].RoleName, match.ID),
		Data:     map[string]any{"matchId": match.ID},
	})
	return match, nil
}

// GetMatch returns a finalized match for rendering.
func (s *Service) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return s.getMatch(ctx, matchID)
}

func (s *Service) getMatch(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.stores.Matches.Get(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("match %s does not exist or has expired", matchID)
	}
	return match, err
}

// ensureNotBannedFromMatch consults the bans of every guild the match was
// drawn from; a sub touches both sides' communities.
func (s *Service) ensureNotBannedFromMatch(ctx context.Context, match *models.Match, userID string) error {
	guilds := []string{match.FirstLineup.GuildID}
	if match.SecondLineup != nil && match.SecondLineup.GuildID != match.FirstLineup.GuildID {
		guilds = append(guilds, match.SecondLineup.GuildID)
	}
	for _, guildID := range guilds {
		if err := s.ensureNotBanned(ctx, guildID, userID); err != nil {
			return err
		}
	}
	return nil
}

func matchChannels(match *models.Match) []string {
	channels := []string{match.FirstLineup.ChannelID}
	if match.SecondLineup != nil {
		channels = append(channels, match.SecondLineup.ChannelID)
	}
	return channels
}

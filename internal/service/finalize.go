package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// finalizeChallenge snapshots both rosters into an immutable match, tears
// the negotiation down and resets the sources. The challenged side of a
// MIX lineup rotates its internal sides instead of a full reset.
func (s *Service) finalizeChallenge(ctx context.Context, challenge *models.Challenge) (*models.Match, error) {
	now := s.now()
	second := challenge.ChallengedLineup
	match := &models.Match{
		ID:            newMatchID(),
		Region:        challenge.InitiatingLineup.Region,
		Size:          challenge.InitiatingLineup.Size,
		Schedule:      now,
		FirstLineup:   challenge.InitiatingLineup,
		SecondLineup:  &second,
		LobbyName:     newLobbyName(),
		LobbyPassword: newLobbyPassword(),
		CreatedAt:     now,
	}
	if err := s.stores.Matches.Create(ctx, match); err != nil {
		return nil, err
	}

	// Reservation cleanup outranks everything that can still fail.
	if err := s.stores.Queues.Release(ctx, challenge.ID); err != nil {
		return nil, err
	}
	if err := s.stores.Challenges.Delete(ctx, challenge.ID); err != nil {
		return nil, err
	}
	for _, ch := range []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID} {
		if err := s.stores.Queues.Delete(ctx, ch); err != nil {
			return nil, err
		}
	}

	if err := s.resetAfterMatch(ctx, challenge.InitiatingChannelID, false); err != nil {
		return nil, err
	}
	if err := s.resetAfterMatch(ctx, challenge.ChallengedChannelID, true); err != nil {
		return nil, err
	}

	s.announceMatch(ctx, match, []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID})
	s.afterMatch(ctx, match)
	return match, nil
}

// finalizeMix turns a full MIX or drafted CAPTAINS lineup into an internal
// match between its two sides.
func (s *Service) finalizeMix(ctx context.Context, lineup *models.Lineup, team *models.Team) error {
	_, err := s.finalizeInternal(ctx, lineup, team)
	return err
}

func (s *Service) finalizeInternal(ctx context.Context, lineup *models.Lineup, team *models.Team) (*models.Match, error) {
	now := s.now()
	match := &models.Match{
		ID:            newMatchID(),
		Region:        team.Region,
		Size:          lineup.Size,
		Schedule:      now,
		FirstLineup:   lineup.Snapshot(*team),
		LobbyName:     newLobbyName(),
		LobbyPassword: newLobbyPassword(),
		CreatedAt:     now,
	}
	if err := s.stores.Matches.Create(ctx, match); err != nil {
		return nil, err
	}
	if err := s.stores.Lineups.ResetAllSides(ctx, lineup.ChannelID); err != nil {
		return nil, err
	}
	if err := s.stores.Queues.Delete(ctx, lineup.ChannelID); err != nil {
		return nil, err
	}
	s.announceMatch(ctx, match, []string{lineup.ChannelID})
	s.afterMatch(ctx, match)
	return match, nil
}

func (s *Service) resetAfterMatch(ctx context.Context, channelID string, wasChallenged bool) error {
	lineup, err := s.stores.Lineups.Get(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if wasChallenged && lineup.Type == models.LineupTypeMix {
		// The played side becomes the new waiting side; the bench moves up.
		if err := s.stores.Lineups.RotateSides(ctx, channelID); err != nil {
			return err
		}
	} else {
		if err := s.stores.Lineups.ResetAllSides(ctx, channelID); err != nil {
			return err
		}
	}
	lineup, err = s.stores.Lineups.Get(ctx, channelID)
	if err != nil {
		return err
	}
	return s.syncQueueEntry(ctx, lineup)
}

func (s *Service) announceMatch(ctx context.Context, match *models.Match, channels []string) {
	s.notify(ctx, notify.Notification{
		Channels: channels,
		Event:    notify.EventMatchReady,
		Message:  fmt.Sprintf("match %s is ready, lobby %s password %s", match.ID, match.LobbyName, match.LobbyPassword),
		Data:     map[string]any{"matchId": match.ID},
	})
}

// afterMatch runs the committed side effects: stat accounting and removal
// of every matched user from any other lineup they were signed into. Both
// are best-effort; the match itself is already immutable.
func (s *Service) afterMatch(ctx context.Context, match *models.Match) {
	users := matchedUsers(match)
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.stores.Stats.IncrementGames(gctx, ids, match.Region, match.Size); err != nil {
			s.log.Warn("stat accounting failed", zap.String("match", match.ID), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		channels, err := s.stores.Lineups.RemoveUsersEverywhere(gctx, ids, match.FirstLineup.ChannelID)
		if err != nil {
			s.log.Warn("cross-lineup removal failed", zap.String("match", match.ID), zap.Error(err))
			return nil
		}
		for _, ch := range channels {
			lineup, err := s.stores.Lineups.Get(gctx, ch)
			if err != nil {
				continue
			}
			if err := s.syncQueueEntry(gctx, lineup); err != nil {
				s.log.Warn("queue sync after removal failed", zap.String("channel", ch), zap.Error(err))
			}
			s.notify(gctx, notify.Notification{
				Channels: []string{ch},
				Event:    notify.EventPlayerLeft,
				Message:  "players joined a live match and were removed from this lineup",
			})
		}
		return nil
	})
	_ = g.Wait()
}

// matchedUsers are the players who actually took the field: side 1 of each
// roster for a two-lineup match, both sides for an internal one.
func matchedUsers(match *models.Match) []models.User {
	if match.SecondLineup != nil {
		users := match.FirstLineup.PrimaryUsers()
		return append(users, match.SecondLineup.PrimaryUsers()...)
	}
	return match.FirstLineup.AllUsers()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// IssueChallenge opens a negotiation against another channel's queue entry,
// reserving both entries under a fresh challenge id. Either both entries
// end up reserved or neither does.
func (s *Service) IssueChallenge(ctx context.Context, channelID string, user models.User, targetChannelID string) (*models.Challenge, error) {
	if channelID == targetChannelID {
		return nil, faults.Validationf("a lineup cannot challenge itself")
	}
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotBanned(ctx, lineup.GuildID, user.ID); err != nil {
		return nil, err
	}
	if _, signed := lineup.RoleOfUser(user.ID); !signed {
		return nil, faults.Validationf("only a signed player can issue a challenge")
	}
	if !lineup.IsAllowedToJoinQueue() {
		return nil, faults.Validationf("your lineup is not complete enough to challenge")
	}
	for _, ch := range []string{channelID, targetChannelID} {
		if _, err := s.stores.Challenges.FindByChannel(ctx, ch); err == nil {
			return nil, faults.Validationf("a challenge is already open for that lineup")
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	target, err := s.stores.Queues.Get(ctx, targetChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("that lineup is no longer searching")
	}
	if err != nil {
		return nil, err
	}
	if target.Reserved() {
		return nil, faults.Validationf("that lineup is already negotiating another challenge")
	}
	if target.Size != lineup.Size {
		return nil, faults.Validationf("roster sizes differ: yours is %d, theirs is %d", lineup.Size, target.Size)
	}

	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		return nil, err
	}
	ownSnapshot := lineup.Snapshot(*team)
	if dupes := duplicatePlayers(ownSnapshot, target.Lineup); len(dupes) > 0 {
		return nil, faults.Validationf("players signed on both sides: %s", strings.Join(dupes, ", "))
	}

	// The issuing side joins the queue implicitly if it was not searching.
	own, err := s.stores.Queues.Get(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		if err := s.publish(ctx, lineup, team); err != nil {
			return nil, err
		}
		own, err = s.stores.Queues.Get(ctx, channelID)
	}
	if err != nil {
		return nil, err
	}
	if own.Reserved() {
		return nil, faults.Validationf("your lineup is already negotiating a challenge")
	}

	challenge := &models.Challenge{
		ID:                  uuid.NewString(),
		InitiatedBy:         user,
		InitiatingChannelID: channelID,
		ChallengedChannelID: targetChannelID,
		InitiatingGuildID:   own.GuildID,
		ChallengedGuildID:   target.GuildID,
		InitiatingLineup:    own.Lineup,
		ChallengedLineup:    target.Lineup,
		CreatedAt:           s.now(),
	}

	err = s.stores.Queues.ReserveBoth(ctx, channelID, targetChannelID, challenge.ID)
	if errors.Is(err, store.ErrConflict) {
		return nil, faults.Validationf("that lineup was just taken by another challenge")
	}
	if err != nil {
		return nil, err
	}
	if err := s.stores.Challenges.Create(ctx, challenge); err != nil {
		// Never leave a reservation dangling behind a failed create.
		if relErr := s.stores.Queues.Release(ctx, challenge.ID); relErr != nil {
			s.log.Error("failed to release reservations after challenge create failure",
				zap.String("challenge", challenge.ID), zap.Error(relErr))
		}
		return nil, err
	}

	s.notify(ctx, notify.Notification{
		Channels: []string{channelID, targetChannelID},
		Event:    notify.EventChallengePending,
		Message:  fmt.Sprintf("%s challenged %s to a %dv%d", ownSnapshot.TeamName, target.Lineup.TeamName, lineup.Size, lineup.Size),
		Data:     map[string]any{"challengeId": challenge.ID},
	})
	return challenge, nil
}

// AcceptChallenge hands a negotiation off to the match finalizer. The
// original initiator cannot accept their own challenge.
func (s *Service) AcceptChallenge(ctx context.Context, challengeID string, user models.User) (*models.Match, error) {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if challenge.InitiatedBy.ID == user.ID {
		return nil, faults.Validationf("the initiator cannot accept their own challenge")
	}
	if !snapshotHasUser(challenge.ChallengedLineup, user.ID) {
		return nil, faults.Validationf("only a player of the challenged lineup can accept")
	}
	if err := s.ensureNotBanned(ctx, challenge.ChallengedGuildID, user.ID); err != nil {
		return nil, err
	}
	return s.finalizeChallenge(ctx, challenge)
}

// RefuseChallenge tears the negotiation down from the challenged side.
func (s *Service) RefuseChallenge(ctx context.Context, challengeID string, user models.User) error {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if !snapshotHasUser(challenge.ChallengedLineup, user.ID) {
		return faults.Validationf("only a player of the challenged lineup can refuse")
	}
	return s.dissolveChallenge(ctx, challenge, fmt.Sprintf("%s refused the challenge", user.Name))
}

// CancelChallenge tears the negotiation down from the initiating side.
func (s *Service) CancelChallenge(ctx context.Context, challengeID string, user models.User) error {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	if !snapshotHasUser(challenge.InitiatingLineup, user.ID) {
		return faults.Validationf("only a player of the initiating lineup can cancel")
	}
	return s.dissolveChallenge(ctx, challenge, fmt.Sprintf("%s cancelled the challenge", user.Name))
}

// RegisterChallengeMessage records one side's posted message handle for
// later retraction.
func (s *Service) RegisterChallengeMessage(ctx context.Context, challengeID, channelID string, handle models.MessageHandle) error {
	challenge, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return err
	}
	switch channelID {
	case challenge.InitiatingChannelID:
		challenge.InitiatingMessage = &handle
	case challenge.ChallengedChannelID:
		challenge.ChallengedMessage = &handle
	default:
		return faults.Validationf("channel is not a party to this challenge")
	}
	return s.stores.Challenges.Update(ctx, challenge)
}

func (s *Service) getChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	challenge, err := s.stores.Challenges.Get(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.Validationf("this challenge no longer exists")
	}
	return challenge, err
}

// dissolveChallenge deletes the challenge and its queue entries. Releasing
// the reservations comes first on every path; nothing may leave a queue
// entry reserved by a dead challenge.
func (s *Service) dissolveChallenge(ctx context.Context, challenge *models.Challenge, message string) error {
	if err := s.stores.Queues.Release(ctx, challenge.ID); err != nil {
		return err
	}
	if err := s.stores.Challenges.Delete(ctx, challenge.ID); err != nil {
		return err
	}
	for _, ch := range []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID} {
		if err := s.stores.Queues.Delete(ctx, ch); err != nil {
			return err
		}
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID},
		Event:    notify.EventChallengeCanceled,
		Message:  message,
		Data:     retractableMessages(challenge),
	})

	// Auto-search lineups go straight back to the queue.
	for _, ch := range []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID} {
		lineup, err := s.stores.Lineups.Get(ctx, ch)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.syncQueueEntry(ctx, lineup); err != nil {
			return err
		}
	}
	return nil
}

// releaseChallenge removes a challenge during cascading deletion, keeping
// the surviving side's queue entry but clearing its reservation.
func (s *Service) releaseChallenge(ctx context.Context, challenge *models.Challenge, reason string) error {
	if err := s.stores.Queues.Release(ctx, challenge.ID); err != nil {
		return err
	}
	if err := s.stores.Challenges.Delete(ctx, challenge.ID); err != nil {
		return err
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{challenge.InitiatingChannelID, challenge.ChallengedChannelID},
		Event:    notify.EventChallengeCanceled,
		Message:  reason,
		Data:     retractableMessages(challenge),
	})
	return nil
}

func retractableMessages(challenge *models.Challenge) map[string]any {
	var handles []models.MessageHandle
	if challenge.InitiatingMessage != nil {
		handles = append(handles, *challenge.InitiatingMessage)
	}
	if challenge.ChallengedMessage != nil {
		handles = append(handles, *challenge.ChallengedMessage)
	}
	if len(handles) == 0 {
		return nil
	}
	return map[string]any{"retract": handles}
}

// duplicatePlayers intersects the primary-side user sets of two rosters.
// Mercenary stand-ins are exempt.
func duplicatePlayers(a, b models.LineupSnapshot) []string {
	ids := a.PrimaryUserIDs()
	var dupes []string
	for _, r := range b.Roles {
		if r.LineupNumber != 1 || r.User == nil || r.User.IsMerc() {
			continue
		}
		if ids[r.User.ID] {
			dupes = append(dupes, r.User.Name)
		}
	}
	return dupes
}

func snapshotHasUser(snapshot models.LineupSnapshot, userID string) bool {
	for _, r := range snapshot.Roles {
		if r.User != nil && r.User.ID == userID {
			return true
		}
	}
	return false
}

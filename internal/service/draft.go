package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/draft"
	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/notify"
	"github.com/psoleague/matchmaking-backend/internal/store"
)

// startDraft kicks off the captains pick once a CAPTAINS lineup fills:
// captains are chosen by historical game count, the persisted lineup is
// reset, and the signed pool lives only inside the session from here on.
func (s *Service) startDraft(ctx context.Context, lineup *models.Lineup, team *models.Team) error {
	pool := s.draftPool(ctx, lineup)

	state, err := draft.NewState(lineup.ChannelID, pool, models.RolesForSide(lineup.ChannelID, lineup.Size, 1))
	if err != nil {
		return faults.Validationf("cannot start draft: %v", err)
	}

	// The picking flag is the trigger's lock: concurrent signups can each
	// observe a full lineup, but only one conditional update claims it. The
	// loser backs off before touching the sides.
	err = s.stores.Lineups.BeginPicking(ctx, lineup.ChannelID)
	if errors.Is(err, store.ErrConflict) {
		return faults.Validationf("a draft is already starting in this channel")
	}
	if err != nil {
		return err
	}
	if err := s.stores.Lineups.ResetAllSides(ctx, lineup.ChannelID); err != nil {
		return err
	}
	// A drafting lineup is not searchable.
	if entry, err := s.stores.Queues.Get(ctx, lineup.ChannelID); err == nil && !entry.Reserved() {
		if err := s.stores.Queues.Delete(ctx, lineup.ChannelID); err != nil {
			return err
		}
	}

	if _, err := s.drafts.Start(state); err != nil {
		// Reaching here holding the flag means any previous session already
		// cleared its own, so releasing our claim cannot corrupt it.
		if clearErr := s.stores.Lineups.ClearPicking(ctx, lineup.ChannelID); clearErr != nil {
			s.log.Error("failed to clear picking flag", zap.String("channel", lineup.ChannelID), zap.Error(clearErr))
		}
		if errors.Is(err, draft.ErrDraftActive) {
			return faults.Validationf("a draft is already running in this channel")
		}
		return err
	}

	s.notify(ctx, notify.Notification{
		Channels: []string{lineup.ChannelID},
		Event:    notify.EventDraftStarted,
		Message: fmt.Sprintf("captains draft started: %s vs %s, %s picks first",
			state.Sides[0].Captain.Name, state.Sides[1].Captain.Name, state.CurrentCaptain().Name),
	})
	return nil
}

// draftPool gathers the signed players of both sides. Users occupying a GK
// slot are marked keepers; historical game counts drive captain selection
// and are best-effort.
func (s *Service) draftPool(ctx context.Context, lineup *models.Lineup) []draft.PoolPlayer {
	var pool []draft.PoolPlayer
	var ids []string
	for n := 1; n <= lineup.NumberOfSides(); n++ {
		for _, r := range lineup.SideRoles(n) {
			if r.UserID == nil {
				continue
			}
			pool = append(pool, draft.PoolPlayer{
				User:       models.User{ID: *r.UserID, Name: r.UserName},
				Goalkeeper: r.Type == models.RoleGoalkeeper,
			})
			ids = append(ids, *r.UserID)
		}
	}
	games, err := s.stores.Stats.GamesFor(ctx, ids)
	if err != nil {
		s.log.Warn("stat lookup failed, drafting with empty history", zap.Error(err))
		return pool
	}
	for i := range pool {
		pool[i].Games = games[pool[i].User.ID]
	}
	return pool
}

// DraftPick applies one captain's pick to the channel's live session.
func (s *Service) DraftPick(ctx context.Context, channelID string, actor models.User, targetUserID string) (draft.State, error) {
	lineup, err := s.getLineup(ctx, channelID)
	if err != nil {
		return draft.State{}, err
	}
	if err := s.ensureNotBanned(ctx, lineup.GuildID, actor.ID); err != nil {
		return draft.State{}, err
	}
	session := s.drafts.Get(channelID)
	if session == nil {
		return draft.State{}, faults.Validationf("no draft is in progress in this channel")
	}

	reply := make(chan draft.PickResult, 1)
	select {
	case session.Inbox() <- draft.Pick{Actor: actor, TargetUserID: targetUserID, Reply: reply}:
	case <-ctx.Done():
		return draft.State{}, ctx.Err()
	}

	var res draft.PickResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		return draft.State{}, ctx.Err()
	}

	switch {
	case errors.Is(res.Err, draft.ErrWrongTurn):
		return res.State, faults.Validationf("it is not your turn to pick")
	case errors.Is(res.Err, draft.ErrNotInPool):
		return res.State, faults.Validationf("that player is not available to pick")
	case errors.Is(res.Err, draft.ErrDraftCompleted):
		return res.State, faults.Validationf("the draft is already over")
	case res.Err != nil:
		return res.State, res.Err
	}

	if !res.State.Done {
		s.notify(ctx, notify.Notification{
			Channels: []string{channelID},
			Event:    notify.EventDraftPick,
			Message:  fmt.Sprintf("%s picked, %s is on the clock", actor.Name, res.State.CurrentCaptain().Name),
		})
	}
	return res.State, nil
}

// DraftState exposes the live session state for rendering.
func (s *Service) DraftState(ctx context.Context, channelID string) (draft.State, error) {
	session := s.drafts.Get(channelID)
	if session == nil {
		return draft.State{}, faults.Validationf("no draft is in progress in this channel")
	}
	reply := make(chan draft.State, 1)
	select {
	case session.Inbox() <- draft.GetState{Reply: reply}:
	case <-ctx.Done():
		return draft.State{}, ctx.Err()
	}
	select {
	case state := <-reply:
		return state, nil
	case <-ctx.Done():
		return draft.State{}, ctx.Err()
	}
}

// DraftCompleted runs on the session goroutine once picking ends: the
// drafted sides are written back in one transaction and the match is
// finalized.
func (s *Service) DraftCompleted(ctx context.Context, state draft.State) {
	channelID := state.ChannelID
	assignments := make([]store.Assignment, 0)
	for _, p := range state.Placements() {
		assignments = append(assignments, store.Assignment{
			RoleName:     p.RoleName,
			LineupNumber: p.LineupNumber,
			User:         p.User,
		})
	}
	if err := s.stores.Lineups.BulkAssign(ctx, channelID, assignments); err != nil {
		s.log.Error("failed to persist draft result", zap.String("channel", channelID), zap.Error(err))
	}
	if err := s.stores.Lineups.ClearPicking(ctx, channelID); err != nil {
		s.log.Error("failed to clear picking flag", zap.String("channel", channelID), zap.Error(err))
	}

	lineup, err := s.stores.Lineups.Get(ctx, channelID)
	if err != nil {
		s.log.Error("draft finalization lost its lineup", zap.String("channel", channelID), zap.Error(err))
		return
	}
	team, err := s.getTeam(ctx, lineup.GuildID)
	if err != nil {
		s.log.Error("draft finalization lost its team", zap.String("channel", channelID), zap.Error(err))
		return
	}
	if _, err := s.finalizeInternal(ctx, lineup, team); err != nil {
		s.log.Error("draft finalization failed", zap.String("channel", channelID), zap.Error(err))
	}
}

// DraftTimedOut runs on the session goroutine when the idle window lapses:
// the draft is abandoned, the stalled captain is dropped from the lineup
// and everyone else is reseated. No match is created.
func (s *Service) DraftTimedOut(ctx context.Context, state draft.State, currentCaptain models.User) {
	channelID := state.ChannelID
	if err := s.stores.Lineups.ClearPicking(ctx, channelID); err != nil {
		s.log.Error("failed to clear picking flag", zap.String("channel", channelID), zap.Error(err))
	}
	assignments := make([]store.Assignment, 0)
	for _, p := range state.RestoreWithout(currentCaptain.ID) {
		assignments = append(assignments, store.Assignment{
			RoleName:     p.RoleName,
			LineupNumber: p.LineupNumber,
			User:         p.User,
		})
	}
	if err := s.stores.Lineups.BulkAssign(ctx, channelID, assignments); err != nil {
		s.log.Error("failed to restore lineup after draft timeout", zap.String("channel", channelID), zap.Error(err))
	}
	s.notify(ctx, notify.Notification{
		Channels: []string{channelID},
		Event:    notify.EventDraftAborted,
		Message:  fmt.Sprintf("draft abandoned, %s took too long to pick and was removed", currentCaptain.Name),
	})
}

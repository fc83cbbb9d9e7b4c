package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/faults"
	"github.com/psoleague/matchmaking-backend/internal/models"
	"github.com/psoleague/matchmaking-backend/internal/service"
	"github.com/psoleague/matchmaking-backend/pkg/types"
)

type api struct {
	svc *service.Service
	log *zap.Logger
}

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) registerTeam(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterTeamRequest
	if !decode(w, r, &req) {
		return
	}
	team, err := a.svc.RegisterTeam(r.Context(), req.GuildID, req.Name, req.Region)
	a.respond(w, team, err, http.StatusCreated)
}

func (a *api) renameTeam(w http.ResponseWriter, r *http.Request) {
	var req types.RenameTeamRequest
	if !decode(w, r, &req) {
		return
	}
	team, err := a.svc.RenameTeam(r.Context(), chi.URLParam(r, "guildID"), req.Name)
	a.respond(w, team, err, http.StatusOK)
}

func (a *api) deleteTeam(w http.ResponseWriter, r *http.Request) {
	err := a.svc.DeleteTeam(r.Context(), chi.URLParam(r, "guildID"))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) banUser(w http.ResponseWriter, r *http.Request) {
	var req types.BanRequest
	if !decode(w, r, &req) {
		return
	}
	err := a.svc.BanUser(r.Context(), chi.URLParam(r, "guildID"), req.UserID, req.Reason, req.ExpiresAt)
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) unbanUser(w http.ResponseWriter, r *http.Request) {
	err := a.svc.UnbanUser(r.Context(), chi.URLParam(r, "guildID"), chi.URLParam(r, "userID"))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) configureLineup(w http.ResponseWriter, r *http.Request) {
	var req types.ConfigureLineupRequest
	if !decode(w, r, &req) {
		return
	}
	lineup, err := a.svc.ConfigureLineup(r.Context(), chi.URLParam(r, "channelID"), req.GuildID,
		req.Size, models.LineupType(req.Type), models.Visibility(req.Visibility), req.AutoSearch)
	a.respond(w, lineup, err, http.StatusCreated)
}

func (a *api) getLineup(w http.ResponseWriter, r *http.Request) {
	lineup, err := a.svc.GetLineup(r.Context(), chi.URLParam(r, "channelID"))
	a.respond(w, lineup, err, http.StatusOK)
}

func (a *api) deleteChannel(w http.ResponseWriter, r *http.Request) {
	err := a.svc.DeleteChannel(r.Context(), chi.URLParam(r, "channelID"))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) signUp(w http.ResponseWriter, r *http.Request) {
	var req types.SignUpRequest
	if !decode(w, r, &req) {
		return
	}
	lineupNumber := req.LineupNumber
	if lineupNumber == 0 {
		lineupNumber = 1
	}
	lineup, err := a.svc.SignUp(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User), req.RoleName, lineupNumber)
	a.respond(w, lineup, err, http.StatusOK)
}

func (a *api) leave(w http.ResponseWriter, r *http.Request) {
	var req types.LeaveRequest
	if !decode(w, r, &req) {
		return
	}
	lineup, err := a.svc.Leave(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User))
	a.respond(w, lineup, err, http.StatusOK)
}

func (a *api) startSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := a.svc.StartSearch(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User))
	a.respond(w, entry, err, http.StatusOK)
}

func (a *api) stopSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	err := a.svc.StopSearch(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) listAvailable(w http.ResponseWriter, r *http.Request) {
	entries, err := a.svc.ListAvailable(r.Context(), chi.URLParam(r, "channelID"))
	a.respond(w, entries, err, http.StatusOK)
}

func (a *api) issueChallenge(w http.ResponseWriter, r *http.Request) {
	var req types.IssueChallengeRequest
	if !decode(w, r, &req) {
		return
	}
	challenge, err := a.svc.IssueChallenge(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User), req.TargetChannelID)
	a.respond(w, challenge, err, http.StatusCreated)
}

func (a *api) acceptChallenge(w http.ResponseWriter, r *http.Request) {
	var req types.ChallengeActionRequest
	if !decode(w, r, &req) {
		return
	}
	match, err := a.svc.AcceptChallenge(r.Context(), chi.URLParam(r, "challengeID"), toUser(req.User))
	a.respond(w, match, err, http.StatusOK)
}

func (a *api) refuseChallenge(w http.ResponseWriter, r *http.Request) {
	var req types.ChallengeActionRequest
	if !decode(w, r, &req) {
		return
	}
	err := a.svc.RefuseChallenge(r.Context(), chi.URLParam(r, "challengeID"), toUser(req.User))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) cancelChallenge(w http.ResponseWriter, r *http.Request) {
	var req types.ChallengeActionRequest
	if !decode(w, r, &req) {
		return
	}
	err := a.svc.CancelChallenge(r.Context(), chi.URLParam(r, "challengeID"), toUser(req.User))
	a.respond(w, nil, err, http.StatusNoContent)
}

func (a *api) draftPick(w http.ResponseWriter, r *http.Request) {
	var req types.DraftPickRequest
	if !decode(w, r, &req) {
		return
	}
	state, err := a.svc.DraftPick(r.Context(), chi.URLParam(r, "channelID"), toUser(req.User), req.PickedUserID)
	a.respond(w, state, err, http.StatusOK)
}

func (a *api) draftState(w http.ResponseWriter, r *http.Request) {
	state, err := a.svc.DraftState(r.Context(), chi.URLParam(r, "channelID"))
	a.respond(w, state, err, http.StatusOK)
}

func (a *api) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := a.svc.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	a.respond(w, match, err, http.StatusOK)
}

func (a *api) requestSub(w http.ResponseWriter, r *http.Request) {
	var req types.RequestSubRequest
	if !decode(w, r, &req) {
		return
	}
	match, err := a.svc.RequestSub(r.Context(), chi.URLParam(r, "matchID"), toUser(req.User), req.RoleName)
	a.respond(w, match, err, http.StatusCreated)
}

func (a *api) acceptSub(w http.ResponseWriter, r *http.Request) {
	var req types.AcceptSubRequest
	if !decode(w, r, &req) {
		return
	}
	match, err := a.svc.AcceptSub(r.Context(), chi.URLParam(r, "matchID"), toUser(req.User))
	a.respond(w, match, err, http.StatusOK)
}

func (a *api) respond(w http.ResponseWriter, v any, err error, okStatus int) {
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			a.log.Error("request failed", zap.Error(err))
		}
		writeJSON(w, status, types.ErrorResponse{Error: err.Error()})
		return
	}
	if v == nil {
		w.WriteHeader(okStatus)
		return
	}
	writeJSON(w, okStatus, v)
}

func statusFor(err error) int {
	switch faults.KindOf(err) {
	case faults.KindValidation:
		return http.StatusBadRequest
	case faults.KindConflict:
		return http.StatusConflict
	case faults.KindTimeout:
		return http.StatusRequestTimeout
	case faults.KindExternalIO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "bad json"})
		return false
	}
	return true
}

func toUser(ref types.UserRef) models.User {
	return models.User{ID: ref.ID, Name: ref.Name}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("took", time.Since(start)))
		})
	}
}

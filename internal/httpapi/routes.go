package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/psoleague/matchmaking-backend/internal/service"
	"github.com/psoleague/matchmaking-backend/internal/ws"
)

// SetupRoutes builds the action-request surface consumed by the platform
// command layer, plus the websocket notification stream.
func SetupRoutes(svc *service.Service, hub *ws.Hub, log *zap.Logger) http.Handler {
	api := &api{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(requestLogger(log))

	r.Get("/healthz", api.healthz)
	r.Get("/ws", ws.Handler(hub))

	r.Route("/teams", func(r chi.Router) {
		r.Post("/", api.registerTeam)
		r.Patch("/{guildID}", api.renameTeam)
		r.Delete("/{guildID}", api.deleteTeam)
		r.Post("/{guildID}/bans", api.banUser)
		r.Delete("/{guildID}/bans/{userID}", api.unbanUser)
	})

	r.Route("/channels/{channelID}", func(r chi.Router) {
		r.Post("/lineup", api.configureLineup)
		r.Get("/lineup", api.getLineup)
		r.Delete("/", api.deleteChannel)
		r.Post("/signup", api.signUp)
		r.Post("/leave", api.leave)
		r.Post("/search/start", api.startSearch)
		r.Post("/search/stop", api.stopSearch)
		r.Get("/queues", api.listAvailable)
		r.Post("/challenges", api.issueChallenge)
		r.Post("/draft/pick", api.draftPick)
		r.Get("/draft", api.draftState)
	})

	r.Route("/challenges/{challengeID}", func(r chi.Router) {
		r.Post("/accept", api.acceptChallenge)
		r.Post("/refuse", api.refuseChallenge)
		r.Post("/cancel", api.cancelChallenge)
	})

	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", api.getMatch)
		r.Post("/subs", api.requestSub)
		r.Post("/subs/accept", api.acceptSub)
	})

	return r
}

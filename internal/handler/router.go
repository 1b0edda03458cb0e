/*
Package handler provides the HTTP handlers and routing setup for the functions service.

This file defines the main Router, applying logging, CORS, metrics and IP-based rate
limiting before delegating requests to the auth, room and realtime handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/higgyo/app-dam/internal/app/backend"
	"github.com/higgyo/app-dam/internal/pkg/auth/jwt"
	"github.com/higgyo/app-dam/internal/pkg/limiter"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/metrics"
	"github.com/higgyo/app-dam/internal/pkg/resp"
)

const (
	// PathRealtime is where realtime clients open their websocket.
	PathRealtime = "/realtime/v1/websocket"

	RealtimeRate  = 0.5
	RealtimeBurst = 10
)

// Router builds the routing table. The returned stop function ends the limiters'
// background sweeps.
func Router(deps *AppDeps) (http.Handler, func()) {
	roomLimiter := limiter.NewIPRateLimiter(rate.Limit(deps.Config.RoomRate), deps.Config.RoomBurst)
	realtimeLimiter := limiter.NewIPRateLimiter(rate.Limit(RealtimeRate), RealtimeBurst)
	stop := func() {
		roomLimiter.Stop()
		realtimeLimiter.Stop()
	}

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "app-dam functions",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Post(backend.PathSignUp, HandleSignUp(deps))
		api.Post(backend.PathToken, HandleToken(deps))
		api.Post(backend.PathLogout, HandleLogout(deps))

		api.Group(func(authed chi.Router) {
			authed.Use(jwt.RequireIdentity)

			authed.Get(backend.PathUser, HandleUser(deps))

			authed.With(roomLimiter.Middleware).
				Post(backend.PathFunctions+backend.FunctionCreateRoom, HandleCreateRoom(deps))
			authed.With(roomLimiter.Middleware).
				Post(backend.PathFunctions+backend.FunctionEnterRoom, HandleEnterRoom(deps))
		})
	})

	if deps.Gateway != nil {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || deps.Config.IsDevelopment() {
					return true
				}
				if _, ok := allowedOrigins[origin]; ok {
					return true
				}

				logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
				return false
			},
		}
		r.Get(PathRealtime, HandleRealtime(deps.Gateway, upgrader, realtimeLimiter))
	}

	return r, stop
}

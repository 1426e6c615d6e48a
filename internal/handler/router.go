/*
Package handler provides the HTTP handlers and routing setup for the direct-message server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"dmchat/internal/pkg/limiter"
	"dmchat/internal/pkg/logx"
)

const (
	AuthRate  = 0.2
	AuthBurst = 5
	WSRate    = 1
	WSBurst   = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	wsLimiter := limiter.NewIPRateLimiter(rate.Limit(WSRate), WSBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
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

	r.Get("/health", HandleHealth(deps))

	r.Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader, wsLimiter))

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)

			auth.Post("/register", HandleRegister(deps))
			auth.Post("/token", HandleLogin(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(RequireUser(deps.Resolver))

			private.Route("/users", func(users chi.Router) {
				users.Get("/me", HandleGetMe(deps))
				users.Get("/search", HandleSearchUsers(deps))
				users.Post("/me/avatar/presign", HandlePresignAvatar(deps))
				users.Post("/me/avatar/upload", HandleUploadAvatar(deps))
				users.Post("/me/avatar", HandleSetAvatar(deps))
			})

			private.Route("/direct-messages", func(dm chi.Router) {
				dm.Post("/", HandleCreateMessage(deps))
				dm.Get("/", HandleListMessages(deps))
				dm.Get("/conversations", HandleListConversations(deps))
				dm.Get("/unread-count", HandleUnreadCount(deps))
				dm.Put("/{id}/read", HandleMarkRead(deps))
			})

			private.Route("/presence", func(presence chi.Router) {
				presence.Get("/connected", HandleConnectedUsers(deps))
				presence.Get("/{user_id}", HandleUserPresence(deps))
			})
		})
	})

	return r
}

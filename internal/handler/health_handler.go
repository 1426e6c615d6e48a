package handler

import (
	"context"
	"net/http"
	"time"

	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/resp"
)

const healthTimeout = 2 * time.Second

// HandleHealth reports whether the store is reachable.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		data := map[string]string{
			"status":    "healthy",
			"database":  "connected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if err := deps.Store.Ping(ctx); err != nil {
			logx.Warn("Health check: store ping failed", "error", err.Error())
			data["status"] = "unhealthy"
			data["database"] = "disconnected"
		}

		resp.RespondSuccess(w, r, data)
	}
}

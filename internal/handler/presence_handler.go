package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/resp"
)

// HandleConnectedUsers lists the ids of users with a live session.
func HandleConnectedUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string][]int64{
			"user_ids": deps.Manager.Registry().ConnectedIDs(),
		})
	}
}

// HandleUserPresence reports whether one user has a live session.
func HandleUserPresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil || userID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user_id": userID,
			"online":  deps.Manager.Registry().IsConnected(userID),
		})
	}
}

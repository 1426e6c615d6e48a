/*
Package handler provides HTTP handler functions for user profiles and avatars.
*/
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"dmchat/internal/app/db"
	"dmchat/internal/app/storage"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

const searchLimit = 20

type PresignAvatarInput struct {
	MimeType string `json:"mimeType" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"required"`
}

type SetAvatarInput struct {
	Key string `json:"key" validate:"required"`
}

// HandleGetMe returns the caller's profile.
func HandleGetMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, current)
	}
}

// HandleSearchUsers finds active users by username substring, excluding the caller.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		found, err := deps.Store.SearchUsers(r.Context(), q, current.ID, searchLimit)
		if err != nil {
			logx.Error(err, "search users failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, lo.Map(found, func(u user.User, _ int) user.Summary { return u.Summary() }))
	}
}

// HandlePresignAvatar returns a presigned PUT URL for a new avatar object owned by the caller.
func HandlePresignAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAvatar(input.MimeType, input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := storage.AvatarKey(current.ID, input.MimeType)

		url, err := deps.Storage.PresignUpload(
			r.Context(),
			key,
			strings.ToLower(input.MimeType),
			input.FileSize,
			storage.PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presignedUrl": url,
			"key":          key,
			"expiresIn":    int(storage.PresignedURLDuration.Seconds()),
		})
	}
}

// HandleUploadAvatar accepts the image as the raw request body, stores it, and sets it as the caller's avatar.
func HandleUploadAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		mimeType := strings.ToLower(r.Header.Get("Content-Type"))
		if customErr := storage.ValidateAvatar(mimeType, r.ContentLength); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := storage.AvatarKey(current.ID, mimeType)
		body := http.MaxBytesReader(w, r.Body, storage.MaxAvatarSize)

		if err := deps.Storage.Upload(r.Context(), key, mimeType, body); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		updateAvatar(w, r, deps, current, key)
	}
}

// HandleSetAvatar points the caller's avatar at an object uploaded through a presigned URL.
func HandleSetAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		var input SetAvatarInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !storage.OwnsKey(current.ID, input.Key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		exists, err := deps.Storage.Exists(r.Context(), input.Key)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}
		if !exists {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		updateAvatar(w, r, deps, current, input.Key)
	}
}

func updateAvatar(w http.ResponseWriter, r *http.Request, deps *AppDeps, current user.User, key string) {
	updated, err := deps.Store.UpdateUserAvatar(r.Context(), current.ID, deps.Storage.PublicURL(key))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		logx.Error(err, "update avatar failed", "user_id", current.ID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	oldKey := storage.KeyFromURL(deps.Storage.PublicURL(""), current.AvatarURL)
	if oldKey != "" && oldKey != key {
		go func(k string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := deps.Storage.Delete(ctx, k); err != nil {
				logx.Warn("failed to delete previous avatar", "key", k)
			}
		}(oldKey)
	}

	resp.RespondSuccess(w, r, updated)
}

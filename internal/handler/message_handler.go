/*
Package handler provides HTTP handler functions for direct message history and delivery.
*/
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"dmchat/internal/app/chat"
	"dmchat/internal/app/db"
	"dmchat/internal/app/message"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

// MaxContentLength bounds message content submitted over HTTP, in characters.
const MaxContentLength = 5000

type CreateMessageInput struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required"`
}

// CreatedMessage is a persisted message plus the outcome of its delivery attempt.
type CreatedMessage struct {
	message.Message
	Status chat.DeliveryStatus `json:"status"`
}

// HandleCreateMessage persists a message and dispatches it like one sent over the websocket.
func HandleCreateMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if utf8.RuneCountInString(input.Content) > MaxContentLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		if _, err := deps.Store.GetUserByID(r.Context(), input.ReceiverID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrReceiverNotFound, input.ReceiverID))
				return
			}
			logx.Error(err, "create message: receiver lookup failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		msg, err := deps.Store.CreateMessage(r.Context(), message.New{
			SenderID:   current.ID,
			ReceiverID: input.ReceiverID,
			Content:    input.Content,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			if errors.Is(err, db.ErrReferenceViolation) {
				resp.RespondError(w, r, errs.NewError(errs.ErrReceiverNotFound, input.ReceiverID))
				return
			}
			logx.Error(err, "create message: insert failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		delivered := deps.Manager.Dispatcher().Dispatch(msg, current.Summary())

		resp.RespondCreated(w, r, CreatedMessage{Message: msg, Status: chat.StatusFor(delivered)})
	}
}

// HandleListMessages returns the caller's history, optionally restricted to one conversation.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		otherUserID, customErr := req.QueryInt64(r, "other_user_id", 0)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit, customErr := req.QueryInt64(r, "limit", message.DefaultLimit)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		skip, customErr := req.QueryInt64(r, "skip", 0)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if otherUserID < 0 || limit < 1 || skip < 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		messages, err := deps.Store.ListMessages(r.Context(), message.Filter{
			UserID:      current.ID,
			OtherUserID: otherUserID,
			Limit:       int(min(limit, message.MaxLimit)),
			Skip:        int(skip),
		})
		if err != nil {
			logx.Error(err, "list messages failed", "user_id", current.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

// HandleListConversations returns the caller's conversation partners, most recent first.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		partners, err := deps.Store.ListConversationPartners(r.Context(), current.ID)
		if err != nil {
			logx.Error(err, "list conversations failed", "user_id", current.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, lo.Map(partners, func(u user.User, _ int) user.Summary { return u.Summary() }))
	}
}

// HandleMarkRead marks a message addressed to the caller as read.
func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Store.MarkMessageRead(r.Context(), id, current.ID); err != nil {
			switch {
			case errors.Is(err, db.ErrNotFound):
				resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound, id))
			case errors.Is(err, db.ErrNotReceiver):
				resp.RespondError(w, r, errs.NewError(errs.ErrNotMessageReceiver))
			default:
				logx.Error(err, "mark read failed", "message_id", id)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			}
			return
		}

		msg, err := deps.Store.GetMessage(r.Context(), id)
		if err != nil {
			logx.Error(err, "mark read: reload failed", "message_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

// HandleUnreadCount returns how many messages addressed to the caller are unread.
func HandleUnreadCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, ok := CurrentUser(r)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		count, err := deps.Store.CountUnread(r.Context(), current.ID)
		if err != nil {
			logx.Error(err, "count unread failed", "user_id", current.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]int64{"unread_count": count})
	}
}

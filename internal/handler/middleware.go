package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"dmchat/internal/app/chat"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/auth/jwt"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/resp"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// RequireUser resolves the Bearer token with the same resolver as the websocket endpoint
// and stores the active user in the request context.
func RequireUser(resolver *chat.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := resolver.Resolve(r.Context(), jwt.BearerToken(r))
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().
					Str("reason", chat.FailureReason(err)).
					Msg("Request rejected: credential not accepted")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(r *http.Request) (user.User, bool) {
	u, ok := r.Context().Value(userContextKey).(user.User)
	return u, ok
}

/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"dmchat/internal/app/db"
	"dmchat/internal/app/user"
	"dmchat/internal/pkg/auth/jwt"
	"dmchat/internal/pkg/errs"
	"dmchat/internal/pkg/logx"
	"dmchat/internal/pkg/req"
	"dmchat/internal/pkg/resp"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by register and token endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleRegister creates an account and returns an access token for it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		// bcrypt ignores input past 72 bytes
		passwordLen := utf8.RuneCountInString(input.Password)
		if passwordLen < minPasswordLength || len(input.Password) > maxPasswordLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		created, err := deps.Store.CreateUser(r.Context(), db.CreateUserParams{
			Username:     input.Username,
			Email:        strings.ToLower(input.Email),
			PasswordHash: string(hashedPassword),
			AuthProvider: "local",
		})
		if err != nil {
			switch {
			case errors.Is(err, db.ErrDuplicateUsername):
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUsernameTaken))
			case errors.Is(err, db.ErrDuplicateEmail):
				logx.Warn("registration conflict: email already exists")
				resp.RespondError(w, r, errs.NewError(errs.ErrEmailTaken))
			default:
				logx.Error(err, "failed to create user in database")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			}
			return
		}

		respondToken(w, r, deps, created, true)
	}
}

// HandleLogin exchanges a username (or email) and password for an access token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		found, err := deps.Store.GetUserByUsername(r.Context(), input.Username)
		if errors.Is(err, db.ErrNotFound) && strings.Contains(input.Username, "@") {
			found, err = deps.Store.GetUserByEmail(r.Context(), strings.ToLower(input.Username))
		}

		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				logx.Error(err, "login: user lookup failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if found.PasswordHash == "" || !found.IsActive {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(input.Password)); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		respondToken(w, r, deps, found, false)
	}
}

func respondToken(w http.ResponseWriter, r *http.Request, deps *AppDeps, u user.User, created bool) {
	tokenString, err := jwt.GenerateToken(u.Username, u.ID, deps.Config.JWTSecret, deps.Config.TokenTTL)
	if err != nil {
		logx.Error(err, "failed to generate access token", "user_id", u.ID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	data := TokenResponse{AccessToken: tokenString, TokenType: "bearer"}
	if created {
		resp.RespondCreated(w, r, data)
		return
	}
	resp.RespondSuccess(w, r, data)
}

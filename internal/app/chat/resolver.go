package chat

import (
	"context"
	"errors"
	"fmt"

	"dmchat/internal/app/user"
	"dmchat/internal/pkg/auth/jwt"
)

// Credential failures. Callers refuse the connection for all three alike.
var (
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrUnknownSubject        = errors.New("credential has no subject")
	ErrInactiveOrMissingUser = errors.New("user inactive or not found")
)

// TokenVerifier decodes and verifies an access token.
type TokenVerifier interface {
	Verify(token string) (*jwt.Payload, error)
}

// UserDirectory looks up accounts by username.
type UserDirectory interface {
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
}

// Resolver maps a caller-supplied credential to an active user.
type Resolver struct {
	tokens TokenVerifier
	users  UserDirectory
}

// NewResolver returns a Resolver backed by the given collaborators.
func NewResolver(tokens TokenVerifier, users UserDirectory) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve verifies credential and returns the active user named by its subject.
func (r *Resolver) Resolve(ctx context.Context, credential string) (user.User, error) {
	if credential == "" {
		return user.User{}, ErrInvalidCredential
	}

	payload, err := r.tokens.Verify(credential)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if payload.Subject == "" {
		return user.User{}, ErrUnknownSubject
	}

	u, err := r.users.GetUserByUsername(ctx, payload.Subject)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrInactiveOrMissingUser, err)
	}

	if !u.IsActive {
		return user.User{}, ErrInactiveOrMissingUser
	}

	return u, nil
}

// FailureReason names a Resolve error for logs.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, ErrInactiveOrMissingUser):
		return "inactive_or_missing_user"
	default:
		return "unknown"
	}
}

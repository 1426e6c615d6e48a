package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dmchat/internal/app/db"
	"dmchat/internal/pkg/auth/jwt"
)

const testSecret = "test-secret"

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()

	alice, err := store.CreateUser(ctx, db.CreateUserParams{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	carol, err := store.CreateUser(ctx, db.CreateUserParams{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)
	require.NoError(t, store.SetActive(carol.ID, false))

	sign := func(sub string, ttl time.Duration) string {
		token, err := jwt.GenerateToken(sub, 0, testSecret, ttl)
		require.NoError(t, err)
		return token
	}

	resolver := NewResolver(jwt.NewVerifier(testSecret), store)

	tests := []struct {
		name       string
		credential string
		wantErr    error
	}{
		{"empty credential", "", ErrInvalidCredential},
		{"garbage", "not-a-token", ErrInvalidCredential},
		{"expired", sign("alice", -time.Minute), ErrInvalidCredential},
		{"wrong secret", func() string {
			token, err := jwt.GenerateToken("alice", 0, "other", time.Minute)
			require.NoError(t, err)
			return token
		}(), ErrInvalidCredential},
		{"no subject", sign("", time.Minute), ErrUnknownSubject},
		{"unknown user", sign("mallory", time.Minute), ErrInactiveOrMissingUser},
		{"inactive user", sign("carol", time.Minute), ErrInactiveOrMissingUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(ctx, tt.credential)
			require.ErrorIs(t, err, tt.wantErr)
			require.NotEqual(t, "unknown", FailureReason(err))
		})
	}

	t.Run("active user", func(t *testing.T) {
		u, err := resolver.Resolve(ctx, sign("alice", time.Minute))
		require.NoError(t, err)
		require.Equal(t, alice.ID, u.ID)
	})
}

package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParseToken(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken("alice", 7, testSecret, time.Minute)
	req.NoError(err)

	payload, err := NewVerifier(testSecret).Verify(token)
	req.NoError(err)
	req.Equal("alice", payload.Subject)
	req.Equal(int64(7), payload.UserID)
	req.Equal(TokenIssuer, payload.Issuer)
}

func TestParseToken_Rejects(t *testing.T) {
	req := require.New(t)

	expired, err := GenerateToken("alice", 7, testSecret, -time.Minute)
	req.NoError(err)
	_, err = ParseToken(expired, testSecret)
	req.Error(err)

	valid, err := GenerateToken("alice", 7, testSecret, time.Minute)
	req.NoError(err)
	_, err = ParseToken(valid, "other-secret")
	req.Error(err)

	_, err = ParseToken("not-a-token", testSecret)
	req.Error(err)
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest(http.MethodGet, "/?token=q", nil)
	req.Equal("", BearerToken(r))
	req.Equal("q", QueryToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	req.Equal("abc", BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	req.Equal("", BearerToken(r))
}

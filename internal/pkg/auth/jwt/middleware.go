package jwt

import (
	"net/http"
	"strings"
)

// QueryTokenKey is the query parameter carrying the credential on websocket upgrades,
// browsers cannot set headers on them.
const QueryTokenKey = "token"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// It returns "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// QueryToken extracts the credential from the token query parameter.
func QueryToken(r *http.Request) string {
	return r.URL.Query().Get(QueryTokenKey)
}

package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set carried by access tokens.
// The subject (sub) is the username; it is what the server trusts to look the user up.
type Payload struct {
	// StandardClaims supplies sub, exp, iat and iss at the top level of the token.
	jwt.StandardClaims

	// UserID is informational only. Lookups always go through the subject.
	UserID int64 `json:"uid,omitempty"`
}

/*
Package user contains the identity types shared by the chat core, the store,
and the HTTP handlers.
*/
package user

import "time"

// User is a registered account as known to the user directory.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	FullName     string    `json:"full_name,omitempty"`
	AuthProvider string    `json:"auth_provider,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary is the denormalized sender block attached to message notifications.
type Summary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// Summary returns the notification summary of u.
func (u User) Summary() Summary {
	return Summary{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}

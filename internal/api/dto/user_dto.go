package dto

import (
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
)

// CredentialsRequest payload for register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse describes the signed-in user. The token is also set as a cookie.
type AuthResponse struct {
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
	UserID   int64       `json:"user_id"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// UserResponses converts directory entries.
func UserResponses(refs []domain.UserRef) []UserResponse {
	out := make([]UserResponse, 0, len(refs))
	for _, ref := range refs {
		out = append(out, UserResponse{UserID: ref.ID, Username: ref.Username})
	}
	return out
}

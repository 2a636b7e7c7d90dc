package domain

import "time"

// Session binds a server-held random id to a user until it expires or is revoked.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Actor is the authenticated identity attempting an action. A nil *Actor is anonymous.
type Actor struct {
	UserID   int64
	Username string
	Role     Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

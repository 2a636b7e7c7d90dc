package domain

import (
	"fmt"
	"time"
)

// Role is the fixed authorization role of a user.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a stored or configured role value.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleStandard, RoleAdmin:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// User is an entry of the user directory. Role is set at creation and never changes.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// UserRef is the public projection of a user used in listings.
type UserRef struct {
	ID       int64
	Username string
}

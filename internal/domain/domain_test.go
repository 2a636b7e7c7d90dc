package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTicketStatus(t *testing.T) {
	for _, status := range TicketStatuses {
		got, err := ParseTicketStatus(string(status))
		require.NoError(t, err)
		assert.Equal(t, status, got)
	}

	for _, raw := range []string{"", "open", "OPEN", "In Review", "Resolved"} {
		_, err := ParseTicketStatus(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("master")
	assert.Error(t, err)
}

func TestNormalizeAssignees(t *testing.T) {
	assert.Equal(t, []int64{1, 2}, NormalizeAssignees(1, []int64{2}))
	assert.Equal(t, []int64{1, 3, 2}, NormalizeAssignees(1, []int64{3, 1, 2, 3}))
	assert.Equal(t, []int64{7}, NormalizeAssignees(7, nil))
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(time.Minute)))
}

func TestActorIsAdmin(t *testing.T) {
	var anonymous *Actor
	assert.False(t, anonymous.IsAdmin())
	assert.True(t, (&Actor{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Actor{Role: RoleStandard}).IsAdmin())
}

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/repository"
)

type fixture struct {
	store    *SessionStore
	sessions *repository.MemorySessionRepository
	user     *domain.User
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := repository.NewMemoryStore()
	user := &domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleStandard}
	require.NoError(t, mem.Users().Create(context.Background(), user))

	sessions := repository.NewMemorySessionRepository()
	store := NewSessionStore(sessions, mem.Users(), NewTokenManager("test-secret"), SessionStoreOptions{
		TTL:            time.Hour,
		StorageTimeout: time.Second,
	})
	now := time.Now()
	store.SetClock(func() time.Time { return now })
	return &fixture{store: store, sessions: sessions, user: user, clock: &now}
}

func TestSessionStoreResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh session resolves to its user", func(t *testing.T) {
		f := newFixture(t)
		token, session, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, session.ID, 64)

		actor, err := f.store.Resolve(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, actor)
		assert.Equal(t, f.user.ID, actor.UserID)
		assert.Equal(t, "alice", actor.Username)
		assert.Equal(t, domain.RoleStandard, actor.Role)
	})

	t.Run("every session gets a distinct token", func(t *testing.T) {
		f := newFixture(t)
		first, _, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)
		second, _, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("invalid tokens resolve to anonymous", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)

		foreign, _, err := NewSessionStore(f.sessions, nil, NewTokenManager("other-secret"), SessionStoreOptions{}).Create(ctx, f.user.ID)
		require.NoError(t, err)

		tampered := token[:len(token)-2] + flip(token[len(token)-2:])
		for name, candidate := range map[string]string{
			"empty":        "",
			"garbage":      "not-a-token",
			"tampered":     tampered,
			"foreign key":  foreign,
			"three dots":   "a.b.c",
			"trailing dot": token + ".",
		} {
			actor, err := f.store.Resolve(ctx, candidate)
			assert.NoError(t, err, name)
			assert.Nil(t, actor, name)
		}
	})

	t.Run("expired session resolves to anonymous", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)

		*f.clock = f.clock.Add(time.Hour + time.Second)
		actor, err := f.store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, actor)
	})

	t.Run("session of a missing user resolves to anonymous", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.store.Create(ctx, 999)
		require.NoError(t, err)

		actor, err := f.store.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, actor)
	})

	t.Run("storage failure is reported", func(t *testing.T) {
		f := newFixture(t)
		token, _, err := f.store.Create(ctx, f.user.ID)
		require.NoError(t, err)

		f.store.sessions = failingSessions{}
		actor, err := f.store.Resolve(ctx, token)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Nil(t, actor)
	})
}

func TestSessionStoreRevoke(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, _, err := f.store.Create(ctx, f.user.ID)
	require.NoError(t, err)
	other, _, err := f.store.Create(ctx, f.user.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.Revoke(ctx, token))
	actor, err := f.store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, actor)

	t.Run("idempotent", func(t *testing.T) {
		assert.NoError(t, f.store.Revoke(ctx, token))
		assert.NoError(t, f.store.Revoke(ctx, ""))
		assert.NoError(t, f.store.Revoke(ctx, "garbage"))
	})

	t.Run("other sessions stay live", func(t *testing.T) {
		actor, err := f.store.Resolve(ctx, other)
		require.NoError(t, err)
		assert.NotNil(t, actor)
	})
}

func flip(s string) string {
	if strings.HasPrefix(s, "A") {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

type failingSessions struct{}

func (failingSessions) Create(context.Context, domain.Session) error {
	return context.DeadlineExceeded
}

func (failingSessions) Get(context.Context, string) (*domain.Session, error) {
	return nil, context.DeadlineExceeded
}

func (failingSessions) Delete(context.Context, string) error {
	return context.DeadlineExceeded
}

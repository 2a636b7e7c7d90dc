package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

func TestAuthServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a standard user with a live session", func(t *testing.T) {
		env := newTestEnv(t)
		result, err := env.auth.Register(ctx, nil, "  bob  ", "hunter2")
		require.NoError(t, err)
		assert.Equal(t, "bob", result.User.Username)
		assert.Equal(t, domain.RoleStandard, result.User.Role)
		assert.NotEqual(t, "hunter2", result.User.PasswordHash)

		actor, err := env.sessions.Resolve(ctx, result.Token)
		require.NoError(t, err)
		require.NotNil(t, actor)
		assert.Equal(t, result.User.ID, actor.UserID)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		env := newTestEnv(t)
		for _, tc := range []struct{ username, password string }{
			{"", "pw"},
			{"   ", "pw"},
			{"bob", ""},
			{strings.Repeat("a", 151), "pw"},
			{"bob", strings.Repeat("p", 73)},
		} {
			_, err := env.auth.Register(ctx, nil, tc.username, tc.password)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "%q/%d", tc.username, len(tc.password))
		}
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.auth.Register(ctx, nil, "bob", "pw")
		require.NoError(t, err)
		_, err = env.auth.Register(ctx, nil, "bob", "other")
		assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
	})

	t.Run("session store outage leaves no account behind", func(t *testing.T) {
		env := newTestEnv(t)
		down := auth.NewSessionStore(unavailableSessions{}, env.store.Users(), auth.NewTokenManager("test-secret"), auth.SessionStoreOptions{
			TTL:            time.Hour,
			StorageTimeout: time.Second,
		})
		svc := NewAuthService(AuthDependencies{
			UserRepo:       env.store.Users(),
			Sessions:       down,
			BcryptCost:     bcrypt.MinCost,
			StorageTimeout: time.Second,
		})

		for attempt := 0; attempt < 2; attempt++ {
			_, err := svc.Register(ctx, nil, "alice", "pw")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeUpstreamUnavailable), "attempt %d: %v", attempt, err)
		}
		_, err := env.store.Users().GetByUsername(ctx, "alice")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		result, err := env.auth.Register(ctx, nil, "alice", "pw")
		require.NoError(t, err)
		assert.Equal(t, "alice", result.User.Username)
	})

	t.Run("authenticated callers cannot register", func(t *testing.T) {
		env := newTestEnv(t)
		actor := env.user(t, "alice", domain.RoleStandard)
		_, err := env.auth.Register(ctx, actor, "bob", "pw")
		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	})
}

func TestAuthServiceLoginLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.auth.Register(ctx, nil, "bob", "correct horse")
	require.NoError(t, err)

	t.Run("wrong password and unknown user fail alike", func(t *testing.T) {
		_, errWrong := env.auth.Login(ctx, nil, "bob", "nope")
		_, errUnknown := env.auth.Login(ctx, nil, "nobody", "nope")
		assert.True(t, apperrors.Is(errWrong, apperrors.CodeUnauthenticated))
		assert.True(t, apperrors.Is(errUnknown, apperrors.CodeUnauthenticated))
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("login then logout", func(t *testing.T) {
		result, err := env.auth.Login(ctx, nil, "bob", "correct horse")
		require.NoError(t, err)

		actor, err := env.sessions.Resolve(ctx, result.Token)
		require.NoError(t, err)
		require.NotNil(t, actor)

		session, err := env.auth.Session(actor)
		require.NoError(t, err)
		assert.Equal(t, "bob", session.Username)

		require.NoError(t, env.auth.Logout(ctx, result.Token))
		require.NoError(t, env.auth.Logout(ctx, result.Token))
		actor, err = env.sessions.Resolve(ctx, result.Token)
		require.NoError(t, err)
		assert.Nil(t, actor)

		_, err = env.auth.Session(actor)
		assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	})

	t.Run("already authenticated", func(t *testing.T) {
		actor := &domain.Actor{UserID: 1, Username: "bob", Role: domain.RoleStandard}
		_, err := env.auth.Login(ctx, actor, "bob", "correct horse")
		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	})
}

func TestAuthServiceEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	created, err := env.auth.EnsureAdmin(ctx, "root", "secret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.auth.EnsureAdmin(ctx, "root", "secret")
	require.NoError(t, err)
	assert.False(t, created)

	result, err := env.auth.Login(ctx, nil, "root", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, result.User.Role)

	env.user(t, "plain", domain.RoleStandard)
	_, err = env.auth.EnsureAdmin(ctx, "plain", "secret")
	assert.Error(t, err)
}

var errRedisDown = errors.New("redis down")

type unavailableSessions struct{}

func (unavailableSessions) Create(context.Context, domain.Session) error { return errRedisDown }

func (unavailableSessions) Get(context.Context, string) (*domain.Session, error) {
	return nil, errRedisDown
}

func (unavailableSessions) Delete(context.Context, string) error { return errRedisDown }

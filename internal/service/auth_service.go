package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/policy"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

const (
	maxUsernameLength = 150
	// bcrypt ignores input past 72 bytes; longer passwords are refused instead of truncated.
	maxPasswordBytes = 72
)

// AuthService coordinates registration, login and logout.
type AuthService struct {
	users      repository.UserRepository
	sessions   *auth.SessionStore
	bcryptCost int
	storage
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	Sessions       *auth.SessionStore
	BcryptCost     int
	StorageTimeout time.Duration
}

// AuthResult is returned by successful register and login calls.
type AuthResult struct {
	User    *domain.User
	Token   string
	Session domain.Session
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		bcryptCost: deps.BcryptCost,
		storage:    newStorage(deps.StorageTimeout, nil),
	}
}

// Register creates a standard account and signs it in.
func (s *AuthService) Register(ctx context.Context, actor *domain.Actor, username, password string) (*AuthResult, error) {
	if !policy.Can(actor, policy.Register, policy.Resource{}) {
		return nil, apperrors.NewForbidden("already authenticated")
	}
	username, err := validateCredentials(username, password)
	if err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, password, domain.RoleStandard)
	if err != nil {
		return nil, err
	}
	result, err := s.startSession(ctx, user)
	if err != nil {
		if rollbackErr := s.removeUser(ctx, user.ID); rollbackErr != nil {
			err = errors.Join(err, rollbackErr)
		}
		return nil, err
	}
	return result, nil
}

// Login verifies credentials. Unknown users and wrong passwords fail alike.
func (s *AuthService) Login(ctx context.Context, actor *domain.Actor, username, password string) (*AuthResult, error) {
	if !policy.Can(actor, policy.Login, policy.Resource{}) {
		return nil, apperrors.NewForbidden("already authenticated")
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	callCtx, cancel := s.call(ctx)
	user, err := s.users.GetByUsername(callCtx, username)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.CompareDummy(password, s.bcryptCost)
			return nil, apperrors.NewUnauthenticated("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("invalid credentials")
	}
	return s.startSession(ctx, user)
}

// Logout revokes the session behind token. Missing or stale tokens are accepted.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Session describes the caller's own session.
func (s *AuthService) Session(actor *domain.Actor) (*domain.Actor, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("not logged in")
	}
	return actor, nil
}

// EnsureAdmin creates the bootstrap admin account unless it already exists.
// It reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username, err := validateCredentials(username, password)
	if err != nil {
		return false, err
	}

	callCtx, cancel := s.call(ctx)
	existing, err := s.users.GetByUsername(callCtx, username)
	cancel()
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			return false, fmt.Errorf("bootstrap user %q exists without admin role", username)
		}
		return false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}

	if _, err := s.createUser(ctx, username, password, domain.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) createUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Username: username, PasswordHash: hash, Role: role}

	callCtx, cancel := s.call(ctx)
	defer cancel()
	if err := s.users.Create(callCtx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, err
	}
	return user, nil
}

// removeUser backs out a registration. It runs even when ctx is already
// cancelled so an aborted request leaves no account behind.
func (s *AuthService) removeUser(ctx context.Context, id int64) error {
	callCtx, cancel := s.call(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.users.Delete(callCtx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("roll back user %d: %w", id, err)
	}
	return nil
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, session, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable(err)
	}
	return &AuthResult{User: user, Token: token, Session: session}, nil
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	details := map[string]any{}
	if username == "" {
		details["username"] = "required"
	} else if utf8.RuneCountInString(username) > maxUsernameLength {
		details["username"] = fmt.Sprintf("at most %d characters", maxUsernameLength)
	}
	if password == "" {
		details["password"] = "required"
	} else if len(password) > maxPasswordBytes {
		details["password"] = fmt.Sprintf("at most %d bytes", maxPasswordBytes)
	}
	if len(details) > 0 {
		return "", apperrors.NewValidationError("invalid credentials payload", details)
	}
	return username, nil
}

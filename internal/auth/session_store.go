package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/repository"
)

const sessionIDBytes = 32

// SessionStore maps opaque client tokens to authenticated actors.
type SessionStore struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	tokens   *TokenManager
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// SessionStoreOptions bounds session lifetime and storage calls.
type SessionStoreOptions struct {
	TTL            time.Duration
	StorageTimeout time.Duration
}

// NewSessionStore wires the store over its repositories.
func NewSessionStore(sessions repository.SessionRepository, users repository.UserRepository, tokens *TokenManager, opts SessionStoreOptions) *SessionStore {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &SessionStore{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
		ttl:      opts.TTL,
		timeout:  opts.StorageTimeout,
		now:      time.Now,
	}
}

// SetClock replaces the time source of the store and its token manager.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.now = now
	s.tokens.now = now
}

// Create starts a session for userID and returns the token to hand to the client.
func (s *SessionStore) Create(ctx context.Context, userID int64) (string, domain.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return "", domain.Session{}, err
	}
	now := s.now()
	session := domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.sessions.Create(callCtx, session); err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	token, err := s.tokens.Sign(session.ID, userID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, session, nil
}

// Resolve returns the actor behind token. Any token that does not name a
// live session of an existing user resolves to a nil actor without error; an
// error means the backing storage could not answer.
func (s *SessionStore) Resolve(ctx context.Context, token string) (*domain.Actor, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		// Only tokens signed with our secret reach storage, so skipping the lookup reveals no session ids.
		return nil, nil
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	session, err := s.sessions.Get(callCtx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.UserID || session.Expired(s.now()) {
		return nil, nil
	}

	user, err := s.users.GetByID(callCtx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return &domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Revoke ends the session behind token. Unknown, expired or malformed tokens are ignored.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.sessions.Delete(callCtx, claims.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *SessionStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/lifecycle"
	"github.com/tracklane/ticket-tracker/internal/repository"
)

type testEnv struct {
	store       *repository.MemoryStore
	sessions    *auth.SessionStore
	auth        *AuthService
	users       *UserService
	tickets     *TicketService
	assignments *AssignmentService
	comments    *CommentService
	locks       *KeyedLocker

	mu        sync.Mutex
	published []events.Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	dispatcher := events.NewBus()
	locks := NewKeyedLocker(time.Second)
	sessions := auth.NewSessionStore(repository.NewMemorySessionRepository(), store.Users(), auth.NewTokenManager("test-secret"), auth.SessionStoreOptions{
		TTL:            time.Hour,
		StorageTimeout: time.Second,
	})

	env := &testEnv{store: store, sessions: sessions, locks: locks}
	for _, eventType := range events.EventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			env.mu.Lock()
			defer env.mu.Unlock()
			env.published = append(env.published, event)
			return nil
		})
	}

	env.auth = NewAuthService(AuthDependencies{
		UserRepo:       store.Users(),
		Sessions:       sessions,
		BcryptCost:     bcrypt.MinCost,
		StorageTimeout: time.Second,
	})
	env.users = NewUserService(store.Users(), time.Second)
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:     store.Tickets(),
		UserRepo:       store.Users(),
		Lifecycle:      lifecycle.NewEngine(),
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: time.Second,
	})
	env.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:     store.Tickets(),
		UserRepo:       store.Users(),
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: time.Second,
	})
	env.comments = NewCommentService(CommentDependencies{
		CommentRepo:    store.Comments(),
		TicketRepo:     store.Tickets(),
		UserRepo:       store.Users(),
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: time.Second,
	})
	return env
}

// user creates an account directly in the store and returns its actor.
func (e *testEnv) user(t *testing.T, name string, role domain.Role) *domain.Actor {
	t.Helper()
	u := &domain.User{Username: name, PasswordHash: "unused", Role: role}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return &domain.Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func (e *testEnv) ticket(t *testing.T, creator *domain.Actor, assignees ...*domain.Actor) *TicketView {
	t.Helper()
	ids := make([]int64, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.UserID)
	}
	view, err := e.tickets.Create(context.Background(), creator, TicketCreateInput{
		Title:           "Bug",
		Description:     "X",
		AssignedUserIDs: ids,
	})
	require.NoError(t, err)
	return view
}

func (e *testEnv) eventTypes() []events.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]events.EventType, 0, len(e.published))
	for _, event := range e.published {
		types = append(types, event.Type)
	}
	return types
}

func ptr(s string) *string { return &s }

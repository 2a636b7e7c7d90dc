package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

func TestTicketServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creator is always assigned", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.user(t, "a", domain.RoleAdmin)
		b := env.user(t, "b", domain.RoleStandard)

		view, err := env.tickets.Create(ctx, a, TicketCreateInput{
			Title:           "Bug",
			Description:     "X",
			AssignedUserIDs: []int64{b.UserID, b.UserID, a.UserID},
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{a.UserID, b.UserID}, view.AssignedUserIDs)
		assert.Equal(t, []domain.UserRef{{ID: a.UserID, Username: "a"}, {ID: b.UserID, Username: "b"}}, view.AssignedUsers)
		assert.Equal(t, domain.TicketStatusOpen, view.Status)
		assert.Equal(t, a.UserID, view.CreatorID)
		assert.Equal(t, []events.EventType{events.EventTicketCreated}, env.eventTypes())
	})

	t.Run("no assignees still assigns the creator", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.user(t, "a", domain.RoleAdmin)
		view := env.ticket(t, a)
		assert.Equal(t, []int64{a.UserID}, view.AssignedUserIDs)
	})

	t.Run("initial status", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.user(t, "a", domain.RoleAdmin)
		view, err := env.tickets.Create(ctx, a, TicketCreateInput{Title: "t", Description: "d", Status: "InReview"})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusInReview, view.Status)

		_, err = env.tickets.Create(ctx, a, TicketCreateInput{Title: "t", Description: "d", Status: "Done"})
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	})

	t.Run("only admins create", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.user(t, "b", domain.RoleStandard)
		_, err := env.tickets.Create(ctx, b, TicketCreateInput{Title: "t", Description: "d"})
		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

		_, err = env.tickets.Create(ctx, nil, TicketCreateInput{Title: "t", Description: "d"})
		assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	})

	t.Run("validates details", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.user(t, "a", domain.RoleAdmin)
		for _, input := range []TicketCreateInput{
			{Title: "", Description: "d"},
			{Title: "t", Description: "   "},
			{Title: strings.Repeat("t", 101), Description: "d"},
			{Title: "t", Description: strings.Repeat("d", 256)},
		} {
			_, err := env.tickets.Create(ctx, a, input)
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
		}
		list, err := env.tickets.List(ctx, a)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("unknown assignees are reported", func(t *testing.T) {
		env := newTestEnv(t)
		a := env.user(t, "a", domain.RoleAdmin)
		_, err := env.tickets.Create(ctx, a, TicketCreateInput{Title: "t", Description: "d", AssignedUserIDs: []int64{42, 43}})
		require.True(t, apperrors.Is(err, apperrors.CodeNotFound))
		assert.Equal(t, []int64{42, 43}, apperrors.ToDomainError(err).Details["user_ids"])
	})
}

func TestTicketServiceVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	admin2 := env.user(t, "admin2", domain.RoleAdmin)
	b := env.user(t, "b", domain.RoleStandard)
	c := env.user(t, "c", domain.RoleStandard)

	first := env.ticket(t, a, b)
	second := env.ticket(t, a)

	t.Run("assigned user sees only assigned tickets", func(t *testing.T) {
		list, err := env.tickets.List(ctx, b)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)

		_, err = env.tickets.Get(ctx, b, second.ID)
		assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	})

	t.Run("unassigned user sees nothing and gets not found", func(t *testing.T) {
		list, err := env.tickets.List(ctx, c)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, errHidden := env.tickets.Get(ctx, c, first.ID)
		_, errMissing := env.tickets.Get(ctx, c, 999)
		assert.True(t, apperrors.Is(errHidden, apperrors.CodeNotFound))
		assert.Equal(t, apperrors.ToDomainError(errMissing).Message, apperrors.ToDomainError(errHidden).Message)
	})

	t.Run("any admin sees everything in id order", func(t *testing.T) {
		list, err := env.tickets.List(ctx, admin2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)

		view, err := env.tickets.Get(ctx, admin2, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Bug", view.Title)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		_, err := env.tickets.List(ctx, nil)
		assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
		_, err = env.tickets.Get(ctx, nil, first.ID)
		assert.True(t, apperrors.Is(err, apperrors.CodeUnauthenticated))
	})
}

func TestTicketServiceStatus(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	other := env.user(t, "other-admin", domain.RoleAdmin)
	b := env.user(t, "b", domain.RoleStandard)
	ticket := env.ticket(t, a, b)

	t.Run("creator moves through every status", func(t *testing.T) {
		for _, status := range []string{"InReview", "Closed", "Open"} {
			view, err := env.tickets.UpdateStatus(ctx, a, ticket.ID, status)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatus(status), view.Status)
		}
		view, err := env.tickets.Get(ctx, a, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, view.Status)
	})

	t.Run("non creators cannot change status", func(t *testing.T) {
		for _, actor := range []*domain.Actor{b, other} {
			_, err := env.tickets.UpdateStatus(ctx, actor, ticket.ID, "Closed")
			assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
		}
		view, err := env.tickets.Get(ctx, a, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, view.Status)
	})

	t.Run("invalid status leaves ticket unchanged", func(t *testing.T) {
		_, err := env.tickets.UpdateStatus(ctx, a, ticket.ID, "Resolved")
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
		view, err := env.tickets.Get(ctx, a, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, view.Status)
	})

	t.Run("status change events carry old and new", func(t *testing.T) {
		env.mu.Lock()
		defer env.mu.Unlock()
		var changes []events.TicketStatusChangedPayload
		for _, event := range env.published {
			if event.Type == events.EventTicketStatusChanged {
				changes = append(changes, event.Payload.(events.TicketStatusChangedPayload))
			}
		}
		require.Len(t, changes, 3)
		assert.Equal(t, domain.TicketStatusOpen, changes[0].OldStatus)
		assert.Equal(t, domain.TicketStatusInReview, changes[0].NewStatus)
	})
}

func TestTicketServiceUpdateDetails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	b := env.user(t, "b", domain.RoleStandard)
	ticket := env.ticket(t, a, b)

	t.Run("combined update", func(t *testing.T) {
		view, err := env.tickets.Update(ctx, a, ticket.ID, TicketUpdateInput{
			Status:      ptr("Closed"),
			Title:       ptr("  Renamed  "),
			Description: ptr("New body"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", view.Title)
		assert.Equal(t, "New body", view.Description)
		assert.Equal(t, domain.TicketStatusClosed, view.Status)
	})

	t.Run("one invalid field rejects the whole request", func(t *testing.T) {
		_, err := env.tickets.Update(ctx, a, ticket.ID, TicketUpdateInput{Status: ptr("Open"), Title: ptr(" ")})
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

		view, err := env.tickets.Get(ctx, a, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", view.Title)
		assert.Equal(t, domain.TicketStatusClosed, view.Status)
	})

	t.Run("assignee cannot edit", func(t *testing.T) {
		_, err := env.tickets.Update(ctx, b, ticket.ID, TicketUpdateInput{Title: ptr("mine")})
		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	})

	t.Run("empty patch", func(t *testing.T) {
		_, err := env.tickets.Update(ctx, a, ticket.ID, TicketUpdateInput{})
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
	})
}

func TestAssignmentService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	b := env.user(t, "b", domain.RoleStandard)
	c := env.user(t, "c", domain.RoleStandard)
	ticket := env.ticket(t, a, b)

	ref, err := env.assignments.Add(ctx, a, ticket.ID, c.UserID)
	require.NoError(t, err)
	assert.Equal(t, "c", ref.Username)

	assignees, err := env.assignments.List(ctx, c, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, assignees, 3)

	_, err = env.assignments.Add(ctx, a, ticket.ID, c.UserID)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

	_, err = env.assignments.Add(ctx, a, ticket.ID, 999)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = env.assignments.Add(ctx, b, ticket.ID, c.UserID)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))

	err = env.assignments.Remove(ctx, a, ticket.ID, a.UserID)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))

	require.NoError(t, env.assignments.Remove(ctx, a, ticket.ID, c.UserID))
	_, err = env.tickets.Get(ctx, c, ticket.ID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	err = env.assignments.Remove(ctx, a, ticket.ID, c.UserID)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	view, err := env.tickets.Get(ctx, a, ticket.ID)
	require.NoError(t, err)
	assert.Contains(t, view.AssignedUserIDs, a.UserID)
}

func TestTicketServiceConcurrentStatusChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	ticket := env.ticket(t, a)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		status := domain.TicketStatuses[i%len(domain.TicketStatuses)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tickets.UpdateStatus(ctx, a, ticket.ID, string(status))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := env.tickets.Get(ctx, a, ticket.ID)
	require.NoError(t, err)
	assert.Contains(t, domain.TicketStatuses, view.Status)
}

type stalledTickets struct {
	repository.TicketRepository
}

func (stalledTickets) GetByID(ctx context.Context, _ int64) (*domain.Ticket, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTicketServiceStorageTimeout(t *testing.T) {
	env := newTestEnv(t)
	a := env.user(t, "a", domain.RoleAdmin)
	svc := NewTicketService(TicketDependencies{
		TicketRepo:     stalledTickets{env.store.Tickets()},
		UserRepo:       env.store.Users(),
		Locks:          NewKeyedLocker(time.Second),
		StorageTimeout: 10 * time.Millisecond,
	})

	_, err := svc.Get(context.Background(), a, 1)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeUpstreamUnavailable, domainErr.Code)
	assert.True(t, domainErr.Retryable())
}

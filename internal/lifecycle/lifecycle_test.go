package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklane/ticket-tracker/internal/domain"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

var (
	creator  = &domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	assignee = &domain.Actor{UserID: 2, Role: domain.RoleStandard}
	admin    = &domain.Actor{UserID: 3, Role: domain.RoleAdmin}
)

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{ID: 1, CreatorID: 1, AssignedUserIDs: []int64{1, 2}, Status: status}
}

func TestTransitionAllowsEveryTransition(t *testing.T) {
	engine := NewEngine()
	for _, from := range domain.TicketStatuses {
		for _, to := range domain.TicketStatuses {
			ticket := newTicket(from)
			next, err := engine.Transition(creator, ticket, string(to))
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, to, next)
			assert.Equal(t, from, ticket.Status, "ticket must not be modified")
		}
	}
}

func TestTransitionRejectsNonCreator(t *testing.T) {
	engine := NewEngine()
	for _, actor := range []*domain.Actor{assignee, admin, nil} {
		ticket := newTicket(domain.TicketStatusOpen)
		_, err := engine.Transition(actor, ticket, string(domain.TicketStatusClosed))
		assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
		assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	engine := NewEngine()
	for _, raw := range []string{"", "Resolved", "closed", "IN_REVIEW"} {
		ticket := newTicket(domain.TicketStatusInReview)
		_, err := engine.Transition(creator, ticket, raw)
		assert.True(t, apperrors.Is(err, apperrors.CodeValidation), raw)
		assert.Equal(t, domain.TicketStatusInReview, ticket.Status)
	}
}

func TestCreatorRoundTrip(t *testing.T) {
	engine := NewEngine()
	ticket := newTicket(domain.TicketStatusOpen)

	for _, step := range []string{"InReview", "Closed", "Open"} {
		next, err := engine.Transition(creator, ticket, step)
		require.NoError(t, err)
		ticket.Status = next
	}
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
}

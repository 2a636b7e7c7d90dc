package service

import (
	"context"
	"errors"
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/policy"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	locks   *KeyedLocker
	storage
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	Locks          *KeyedLocker
	Dispatcher     events.Dispatcher
	StorageTimeout time.Duration
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
		locks:   deps.Locks,
		storage: newStorage(deps.StorageTimeout, deps.Dispatcher),
	}
}

// List returns the users assigned to a visible ticket in assignment order.
func (s *AssignmentService) List(ctx context.Context, actor *domain.Actor, ticketID int64) ([]domain.UserRef, error) {
	ticket, err := visibleTicket(ctx, s.storage, s.tickets, actor, ticketID)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	refs, err := s.users.ListByIDs(callCtx, ticket.AssignedUserIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(refs))
	for _, ref := range refs {
		names[ref.ID] = ref.Username
	}
	return refsFor(ticket.AssignedUserIDs, names), nil
}

// Add assigns userID to the ticket. Only the creator manages assignments.
func (s *AssignmentService) Add(ctx context.Context, actor *domain.Actor, ticketID, userID int64) (*domain.UserRef, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	unlock, err := s.locks.Lock(ctx, ticketLockKey(ticketID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.manageable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsAssigned(userID) {
		return nil, alreadyAssigned(userID)
	}

	callCtx, cancel := s.call(ctx)
	defer cancel()
	user, err := s.users.GetByID(callCtx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user", map[string]any{"user_id": userID})
	}
	if err := s.tickets.AddAssignee(callCtx, ticketID, userID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, alreadyAssigned(userID)
		}
		return nil, notFoundAs(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.publish(ctx, events.EventTicketAssigneeAdded, ticketID, actor, events.TicketAssigneePayload{UserID: userID})
	return &domain.UserRef{ID: user.ID, Username: user.Username}, nil
}

// Remove unassigns userID. The creator cannot be removed.
func (s *AssignmentService) Remove(ctx context.Context, actor *domain.Actor, ticketID, userID int64) error {
	if actor == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	unlock, err := s.locks.Lock(ctx, ticketLockKey(ticketID))
	if err != nil {
		return err
	}
	defer unlock()

	ticket, err := s.manageable(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if userID == ticket.CreatorID {
		return apperrors.NewValidationError("the ticket creator cannot be unassigned", map[string]any{"user_id": userID})
	}
	if !ticket.IsAssigned(userID) {
		return apperrors.NewNotFound("assignment", map[string]any{"user_id": userID})
	}

	callCtx, cancel := s.call(ctx)
	err = s.tickets.RemoveAssignee(callCtx, ticketID, userID)
	cancel()
	if err != nil {
		return notFoundAs(err, "assignment", map[string]any{"user_id": userID})
	}

	s.publish(ctx, events.EventTicketAssigneeRemoved, ticketID, actor, events.TicketAssigneePayload{UserID: userID})
	return nil
}

func (s *AssignmentService) manageable(ctx context.Context, actor *domain.Actor, ticketID int64) (*domain.Ticket, error) {
	ticket, err := visibleTicket(ctx, s.storage, s.tickets, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor, policy.ManageAssignments, policy.Resource{Ticket: ticket}) {
		return nil, apperrors.NewForbidden("only the ticket creator can manage assignments")
	}
	return ticket, nil
}

func alreadyAssigned(userID int64) error {
	return apperrors.NewConflict("user already assigned", map[string]any{"user_id": userID})
}

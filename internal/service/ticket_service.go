package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/lifecycle"
	"github.com/tracklane/ticket-tracker/internal/policy"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 255
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets   repository.TicketRepository
	users     repository.UserRepository
	lifecycle *lifecycle.Engine
	locks     *KeyedLocker
	storage
}

// TicketDependencies bundles requirements for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	Lifecycle      *lifecycle.Engine
	Locks          *KeyedLocker
	Dispatcher     events.Dispatcher
	StorageTimeout time.Duration
}

// TicketCreateInput describes ticket creation payload. An empty Status means Open.
type TicketCreateInput struct {
	Title           string
	Description     string
	Status          string
	AssignedUserIDs []int64
}

// TicketUpdateInput carries the fields a PATCH may change; nil fields are left alone.
type TicketUpdateInput struct {
	Status      *string
	Title       *string
	Description *string
}

// TicketView is a ticket with its assignees' current usernames, in assignment order.
type TicketView struct {
	domain.Ticket
	AssignedUsers []domain.UserRef
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	engine := deps.Lifecycle
	if engine == nil {
		engine = lifecycle.NewEngine()
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		users:     deps.UserRepo,
		lifecycle: engine,
		locks:     deps.Locks,
		storage:   newStorage(deps.StorageTimeout, deps.Dispatcher),
	}
}

// Create stores a new ticket. The creator is always among the assignees.
func (s *TicketService) Create(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*TicketView, error) {
	if !policy.Can(actor, policy.CreateTicket, policy.Resource{}) {
		return nil, deny(actor, "admin role required")
	}
	title, description, err := validateDetails(input.Title, input.Description)
	if err != nil {
		return nil, err
	}
	status := domain.TicketStatusOpen
	if raw := strings.TrimSpace(input.Status); raw != "" {
		if status, err = domain.ParseTicketStatus(raw); err != nil {
			return nil, invalidStatus(input.Status)
		}
	}

	assignees := domain.NormalizeAssignees(actor.UserID, input.AssignedUserIDs)
	if err := s.ensureUsersExist(ctx, assignees); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:           title,
		Description:     description,
		Status:          status,
		CreatorID:       actor.UserID,
		AssignedUserIDs: assignees,
	}
	callCtx, cancel := s.call(ctx)
	err = s.tickets.Create(callCtx, ticket)
	cancel()
	if err != nil {
		return nil, notFoundAs(err, "user", nil)
	}

	s.publish(ctx, events.EventTicketCreated, ticket.ID, actor, events.TicketCreatedPayload{
		Title:           ticket.Title,
		Status:          ticket.Status,
		AssignedUserIDs: ticket.AssignedUserIDs,
	})
	return s.view(ctx, ticket)
}

// List returns every ticket for admins and the assigned tickets for everyone else, by id.
func (s *TicketService) List(ctx context.Context, actor *domain.Actor) ([]TicketView, error) {
	if !policy.Can(actor, policy.ViewTicketList, policy.Resource{}) {
		return nil, deny(actor, "not allowed to list tickets")
	}

	callCtx, cancel := s.call(ctx)
	var (
		tickets []domain.Ticket
		err     error
	)
	if actor.IsAdmin() {
		tickets, err = s.tickets.ListAll(callCtx)
	} else {
		tickets, err = s.tickets.ListAssignedTo(callCtx, actor.UserID)
	}
	cancel()
	if err != nil {
		return nil, err
	}
	tickets = policy.FilterVisible(actor, tickets)

	var ids []int64
	for _, ticket := range tickets {
		ids = append(ids, ticket.AssignedUserIDs...)
	}
	names, err := s.usernames(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		views = append(views, TicketView{Ticket: ticket, AssignedUsers: refsFor(ticket.AssignedUserIDs, names)})
	}
	return views, nil
}

// Get returns a ticket the actor may view. Tickets the actor cannot see are reported as missing.
func (s *TicketService) Get(ctx context.Context, actor *domain.Actor, id int64) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, ticket)
}

// UpdateStatus moves a ticket to status.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.Actor, id int64, status string) (*TicketView, error) {
	return s.Update(ctx, actor, id, TicketUpdateInput{Status: &status})
}

// Update applies status and detail changes together. Everything is checked
// before the single write, so a rejected request changes nothing.
func (s *TicketService) Update(ctx context.Context, actor *domain.Actor, id int64, input TicketUpdateInput) (*TicketView, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	if input.Status == nil && input.Title == nil && input.Description == nil {
		return nil, apperrors.NewValidationError("nothing to update", map[string]any{
			"fields": []string{"status", "title", "description"},
		})
	}

	unlock, err := s.locks.Lock(ctx, ticketLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	editing := input.Title != nil || input.Description != nil
	if editing && !policy.Can(actor, policy.EditTicket, policy.Resource{Ticket: ticket}) {
		return nil, apperrors.NewForbidden("only the ticket creator can edit it")
	}
	nextStatus := ticket.Status
	if input.Status != nil {
		if nextStatus, err = s.lifecycle.Transition(actor, ticket, *input.Status); err != nil {
			return nil, err
		}
	}
	title, description := ticket.Title, ticket.Description
	if input.Title != nil {
		title = *input.Title
	}
	if input.Description != nil {
		description = *input.Description
	}
	if editing {
		if title, description, err = validateDetails(title, description); err != nil {
			return nil, err
		}
	}

	previous := *ticket
	ticket.Title, ticket.Description, ticket.Status = title, description, nextStatus

	callCtx, cancel := s.call(ctx)
	err = s.tickets.Update(callCtx, ticket)
	cancel()
	if err != nil {
		return nil, notFoundAs(err, "ticket", map[string]any{"ticket_id": id})
	}

	if input.Status != nil {
		s.publish(ctx, events.EventTicketStatusChanged, ticket.ID, actor, events.TicketStatusChangedPayload{
			OldStatus: previous.Status,
			NewStatus: ticket.Status,
		})
	}
	var changed []string
	if previous.Title != ticket.Title {
		changed = append(changed, "title")
	}
	if previous.Description != ticket.Description {
		changed = append(changed, "description")
	}
	if len(changed) > 0 {
		s.publish(ctx, events.EventTicketUpdated, ticket.ID, actor, events.TicketUpdatedPayload{Fields: changed})
	}
	return s.view(ctx, ticket)
}

func (s *TicketService) loadVisible(ctx context.Context, actor *domain.Actor, id int64) (*domain.Ticket, error) {
	return visibleTicket(ctx, s.storage, s.tickets, actor, id)
}

// visibleTicket fetches a ticket and hides it when the actor may not view it.
func visibleTicket(ctx context.Context, st storage, tickets repository.TicketRepository, actor *domain.Actor, id int64) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	callCtx, cancel := st.call(ctx)
	ticket, err := tickets.GetByID(callCtx, id)
	cancel()
	if err != nil {
		return nil, notFoundAs(err, "ticket", map[string]any{"ticket_id": id})
	}
	if !policy.Can(actor, policy.ViewTicket, policy.Resource{Ticket: ticket}) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

func (s *TicketService) view(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	names, err := s.usernames(ctx, ticket.AssignedUserIDs)
	if err != nil {
		return nil, err
	}
	return &TicketView{Ticket: *ticket, AssignedUsers: refsFor(ticket.AssignedUserIDs, names)}, nil
}

func (s *TicketService) usernames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	callCtx, cancel := s.call(ctx)
	defer cancel()
	refs, err := s.users.ListByIDs(callCtx, ids)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		names[ref.ID] = ref.Username
	}
	return names, nil
}

func (s *TicketService) ensureUsersExist(ctx context.Context, ids []int64) error {
	names, err := s.usernames(ctx, ids)
	if err != nil {
		return err
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewNotFound("user", map[string]any{"user_ids": missing})
	}
	return nil
}

func refsFor(ids []int64, names map[int64]string) []domain.UserRef {
	refs := make([]domain.UserRef, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			refs = append(refs, domain.UserRef{ID: id, Username: name})
		}
	}
	return refs
}

func validateDetails(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	details := map[string]any{}
	checkLength(details, "title", title, maxTitleLength)
	checkLength(details, "description", description, maxDescriptionLength)
	if len(details) > 0 {
		return "", "", apperrors.NewValidationError("invalid ticket details", details)
	}
	return title, description, nil
}

func checkLength(details map[string]any, field, value string, max int) {
	switch n := utf8.RuneCountInString(value); {
	case n == 0:
		details[field] = "required"
	case n > max:
		details[field] = fmt.Sprintf("at most %d characters", max)
	}
}

func invalidStatus(raw string) error {
	return apperrors.NewValidationError("invalid status", map[string]any{
		"status":  raw,
		"allowed": domain.TicketStatuses,
	})
}

func ticketLockKey(id int64) string {
	return fmt.Sprintf("ticket:%d", id)
}

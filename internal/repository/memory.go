package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
)

// MemoryStore keeps users, tickets and comments in process memory. It is used
// when no Postgres DSN is configured and by tests. Unique usernames and
// foreign keys are enforced like the SQL schema does.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	users         map[int64]domain.User
	userOrder     []int64
	usernameIndex map[string]int64

	tickets     map[int64]domain.Ticket
	ticketOrder []int64

	comments     map[int64]domain.Comment
	commentOrder []int64

	nextUserID    int64
	nextTicketID  int64
	nextCommentID int64
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:           time.Now,
		users:         make(map[int64]domain.User),
		usernameIndex: make(map[string]int64),
		tickets:       make(map[int64]domain.Ticket),
		comments:      make(map[int64]domain.Comment),
	}
}

// Users returns the store's user repository view.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Tickets returns the store's ticket repository view.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Comments returns the store's comment repository view.
func (s *MemoryStore) Comments() CommentRepository { return memoryComments{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.usernameIndex[user.Username]; exists {
		return ErrDuplicate
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.CreatedAt = r.s.now()
	r.s.users[user.ID] = *user
	r.s.userOrder = append(r.s.userOrder, user.ID)
	r.s.usernameIndex[user.Username] = user.ID
	return nil
}

func (r memoryUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.usernameIndex[username]
	if !ok {
		return nil, ErrNotFound
	}
	user := r.s.users[id]
	return &user, nil
}

func (r memoryUsers) List(ctx context.Context) ([]domain.UserRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]domain.UserRef, 0, len(r.s.userOrder))
	for _, id := range r.s.userOrder {
		user := r.s.users[id]
		result = append(result, domain.UserRef{ID: user.ID, Username: user.Username})
	}
	return result, nil
}

func (r memoryUsers) ListByIDs(ctx context.Context, ids []int64) ([]domain.UserRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.UserRef{}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := r.s.users[id]; ok {
			result = append(result, domain.UserRef{ID: user.ID, Username: user.Username})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memoryUsers) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return ErrNotFound
	}
	for _, ticket := range r.s.tickets {
		if ticket.CreatorID == id || ticket.IsAssigned(id) {
			return ErrInUse
		}
	}
	for _, comment := range r.s.comments {
		if comment.AuthorID == id {
			return ErrInUse
		}
	}
	delete(r.s.users, id)
	delete(r.s.usernameIndex, user.Username)
	for i, candidate := range r.s.userOrder {
		if candidate == id {
			r.s.userOrder = append(r.s.userOrder[:i], r.s.userOrder[i+1:]...)
			break
		}
	}
	return nil
}

type memoryTickets struct{ s *MemoryStore }

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.AssignedUserIDs = append([]int64(nil), t.AssignedUserIDs...)
	return t
}

func (r memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[ticket.CreatorID]; !ok {
		return ErrNotFound
	}
	for _, id := range ticket.AssignedUserIDs {
		if _, ok := r.s.users[id]; !ok {
			return ErrNotFound
		}
	}
	r.s.nextTicketID++
	now := r.s.now()
	ticket.ID = r.s.nextTicketID
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	r.s.ticketOrder = append(r.s.ticketOrder, ticket.ID)
	return nil
}

func (r memoryTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = ticket.Title
	stored.Description = ticket.Description
	stored.Status = ticket.Status
	stored.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = stored
	ticket.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r memoryTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneTicket(ticket)
	return &clone, nil
}

func (r memoryTickets) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.list(ctx, func(domain.Ticket) bool { return true })
}

func (r memoryTickets) ListAssignedTo(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	return r.list(ctx, func(t domain.Ticket) bool { return t.IsAssigned(userID) })
}

func (r memoryTickets) list(ctx context.Context, keep func(domain.Ticket) bool) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.Ticket{}
	for _, id := range r.s.ticketOrder {
		ticket := r.s.tickets[id]
		if keep(ticket) {
			result = append(result, cloneTicket(ticket))
		}
	}
	return result, nil
}

func (r memoryTickets) AddAssignee(ctx context.Context, ticketID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ticket, ok := r.s.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return ErrNotFound
	}
	if ticket.IsAssigned(userID) {
		return ErrDuplicate
	}
	ticket.AssignedUserIDs = append(append([]int64(nil), ticket.AssignedUserIDs...), userID)
	r.s.tickets[ticketID] = ticket
	return nil
}

func (r memoryTickets) RemoveAssignee(ctx context.Context, ticketID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ticket, ok := r.s.tickets[ticketID]
	if !ok || !ticket.IsAssigned(userID) {
		return ErrNotFound
	}
	remaining := make([]int64, 0, len(ticket.AssignedUserIDs)-1)
	for _, id := range ticket.AssignedUserIDs {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	ticket.AssignedUserIDs = remaining
	r.s.tickets[ticketID] = ticket
	return nil
}

type memoryComments struct{ s *MemoryStore }

func (r memoryComments) Create(ctx context.Context, comment *domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[comment.TicketID]; !ok {
		return ErrNotFound
	}
	if _, ok := r.s.users[comment.AuthorID]; !ok {
		return ErrNotFound
	}
	r.s.nextCommentID++
	comment.ID = r.s.nextCommentID
	comment.CreatedAt = r.s.now()
	r.s.comments[comment.ID] = *comment
	r.s.commentOrder = append(r.s.commentOrder, comment.ID)
	return nil
}

func (r memoryComments) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	comment, ok := r.s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &comment, nil
}

func (r memoryComments) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.Comment{}
	for _, id := range r.s.commentOrder {
		if comment := r.s.comments[id]; comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (r memoryComments) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.comments, id)
	for i, candidate := range r.s.commentOrder {
		if candidate == id {
			r.s.commentOrder = append(r.s.commentOrder[:i], r.s.commentOrder[i+1:]...)
			break
		}
	}
	return nil
}

// MemorySessionRepository keeps sessions in a map and drops expired entries lazily.
type MemorySessionRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]domain.Session
}

// NewMemorySessionRepository builds an empty session map.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{now: time.Now, sessions: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, existing := range r.sessions {
		if existing.Expired(now) {
			delete(r.sessions, id)
		}
	}
	if _, exists := r.sessions[session.ID]; exists {
		return ErrDuplicate
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if session.Expired(r.now()) {
		delete(r.sessions, id)
		return nil, ErrNotFound
	}
	return &session, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// Len reports the number of stored, possibly expired, sessions.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tracklane/ticket-tracker/internal/domain"
)

// TicketRepository encapsulates ticket and assignment persistence.
type TicketRepository interface {
	// Create stores the ticket and its assignments atomically.
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes title, description and status in a single statement.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListAssignedTo(ctx context.Context, userID int64) ([]domain.Ticket, error)
	AddAssignee(ctx context.Context, ticketID, userID int64) error
	RemoveAssignee(ctx context.Context, ticketID, userID int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSelect = `
        SELECT t.id, t.title, t.description, t.status, t.creator_id, t.created_at, t.updated_at,
               COALESCE(array_agg(a.user_id ORDER BY a.id) FILTER (WHERE a.user_id IS NOT NULL), '{}')
        FROM tickets t
        LEFT JOIN ticket_assignments a ON a.ticket_id = t.id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ticket tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertTicket = `
        INSERT INTO tickets (title, description, status, creator_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, insertTicket,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatorID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return fmt.Errorf("insert ticket: %w", translate(err))
	}

	const insertAssignment = `INSERT INTO ticket_assignments (ticket_id, user_id) VALUES ($1,$2)`
	batch := &pgx.Batch{}
	for _, userID := range ticket.AssignedUserIDs {
		batch.Queue(insertAssignment, ticket.ID, userID)
	}
	results := tx.SendBatch(ctx, batch)
	for range ticket.AssignedUserIDs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("insert assignment: %w", translate(err))
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("insert assignments: %w", translate(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return fmt.Errorf("update ticket: %w", translate(err))
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := ticketSelect + ` WHERE t.id=$1 GROUP BY t.id`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select ticket: %w", err)
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, ErrNotFound
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := ticketSelect + ` GROUP BY t.id ORDER BY t.id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAssignedTo(ctx context.Context, userID int64) ([]domain.Ticket, error) {
	query := ticketSelect + `
        WHERE t.id IN (SELECT ticket_id FROM ticket_assignments WHERE user_id=$1)
        GROUP BY t.id ORDER BY t.id ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list assigned tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) AddAssignee(ctx context.Context, ticketID, userID int64) error {
	const query = `INSERT INTO ticket_assignments (ticket_id, user_id) VALUES ($1,$2)`
	if _, err := r.pool.Exec(ctx, query, ticketID, userID); err != nil {
		return fmt.Errorf("insert assignment: %w", translate(err))
	}
	return nil
}

func (r *ticketRepository) RemoveAssignee(ctx context.Context, ticketID, userID int64) error {
	const query = `DELETE FROM ticket_assignments WHERE ticket_id=$1 AND user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, ticketID, userID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.CreatorID,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.AssignedUserIDs,
		); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

package dto

import (
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
)

// CreateTicketRequest payload. Status defaults to Open.
type CreateTicketRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	AssignedUserIDs []int64 `json:"assigned_user_ids"`
}

// UpdateTicketRequest payload; omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Status      *string `json:"status"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// AssignmentRequest payload.
type AssignmentRequest struct {
	UserID int64 `json:"user_id"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Status          domain.TicketStatus `json:"status"`
	CreatorID       int64               `json:"creator_id"`
	AssignedUserIDs []int64             `json:"assigned_user_ids"`
	AssignedUsers   []UserResponse      `json:"assigned_users"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// CommentResponse represents a thread entry.
type CommentResponse struct {
	ID             int64     `json:"id"`
	TicketID       int64     `json:"ticket_id"`
	AuthorID       int64     `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewCommentResponse converts a comment view.
func NewCommentResponse(view domain.CommentView) CommentResponse {
	return CommentResponse{
		ID:             view.ID,
		TicketID:       view.TicketID,
		AuthorID:       view.AuthorID,
		AuthorUsername: view.AuthorUsername,
		Content:        view.Content,
		CreatedAt:      view.CreatedAt,
	}
}

package events

import (
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketUpdated         EventType = "ticket_updated"
	EventTicketAssigneeAdded   EventType = "ticket_assignee_added"
	EventTicketAssigneeRemoved EventType = "ticket_assignee_removed"
	EventCommentAdded          EventType = "comment_added"
	EventCommentDeleted        EventType = "comment_deleted"
)

// EventTypes lists every event the services publish.
var EventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketUpdated,
	EventTicketAssigneeAdded,
	EventTicketAssigneeRemoved,
	EventCommentAdded,
	EventCommentDeleted,
}

// Actor identifies who caused an event.
type Actor struct {
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

// ActorOf converts an authenticated actor.
func ActorOf(actor *domain.Actor) Actor {
	if actor == nil {
		return Actor{}
	}
	return Actor{UserID: actor.UserID, Username: actor.Username, Role: actor.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

type TicketCreatedPayload struct {
	Title           string              `json:"title"`
	Status          domain.TicketStatus `json:"status"`
	AssignedUserIDs []int64             `json:"assigned_user_ids"`
}

type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketUpdatedPayload lists which detail fields changed.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

type TicketAssigneePayload struct {
	UserID int64 `json:"user_id"`
}

type CommentAddedPayload struct {
	CommentID      int64  `json:"comment_id"`
	ContentPreview string `json:"content_preview"`
}

type CommentDeletedPayload struct {
	CommentID int64 `json:"comment_id"`
	AuthorID  int64 `json:"author_id"`
}

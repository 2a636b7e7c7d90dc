package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/policy"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// CommentService manages ticket threads.
type CommentService struct {
	comments repository.CommentRepository
	tickets  repository.TicketRepository
	users    repository.UserRepository
	locks    *KeyedLocker
	storage
}

// CommentDependencies bundles requirements for the comment service.
type CommentDependencies struct {
	CommentRepo    repository.CommentRepository
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	Locks          *KeyedLocker
	Dispatcher     events.Dispatcher
	StorageTimeout time.Duration
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments: deps.CommentRepo,
		tickets:  deps.TicketRepo,
		users:    deps.UserRepo,
		locks:    deps.Locks,
		storage:  newStorage(deps.StorageTimeout, deps.Dispatcher),
	}
}

// Add appends a comment to a ticket the actor can view.
func (s *CommentService) Add(ctx context.Context, actor *domain.Actor, ticketID int64, content string) (*domain.CommentView, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	unlock, err := s.locks.Lock(ctx, ticketLockKey(ticketID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ticket, err := visibleTicket(ctx, s.storage, s.tickets, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor, policy.CreateComment, policy.Resource{Ticket: ticket}) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", map[string]any{"content": "required"})
	}

	comment := &domain.Comment{TicketID: ticket.ID, AuthorID: actor.UserID, Content: content}
	callCtx, cancel := s.call(ctx)
	err = s.comments.Create(callCtx, comment)
	cancel()
	if err != nil {
		return nil, notFoundAs(err, "ticket", map[string]any{"ticket_id": ticketID})
	}

	s.publish(ctx, events.EventCommentAdded, ticket.ID, actor, events.CommentAddedPayload{
		CommentID:      comment.ID,
		ContentPreview: preview(comment.Content, 120),
	})
	return &domain.CommentView{Comment: *comment, AuthorUsername: actor.Username}, nil
}

// List returns a visible ticket's comments in insertion order with current author names.
func (s *CommentService) List(ctx context.Context, actor *domain.Actor, ticketID int64) ([]domain.CommentView, error) {
	ticket, err := visibleTicket(ctx, s.storage, s.tickets, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor, policy.ListComments, policy.Resource{Ticket: ticket}) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	callCtx, cancel := s.call(ctx)
	defer cancel()
	comments, err := s.comments.ListByTicket(callCtx, ticket.ID)
	if err != nil {
		return nil, err
	}
	authorIDs := make([]int64, 0, len(comments))
	for _, comment := range comments {
		authorIDs = append(authorIDs, comment.AuthorID)
	}
	names := map[int64]string{}
	if len(authorIDs) > 0 {
		refs, err := s.users.ListByIDs(callCtx, authorIDs)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			names[ref.ID] = ref.Username
		}
	}

	views := make([]domain.CommentView, 0, len(comments))
	for _, comment := range comments {
		views = append(views, domain.CommentView{Comment: comment, AuthorUsername: names[comment.AuthorID]})
	}
	return views, nil
}

// Delete removes a comment. The author and the ticket creator may delete it;
// comments on tickets the actor cannot view are reported as missing.
func (s *CommentService) Delete(ctx context.Context, actor *domain.Actor, commentID int64) error {
	if actor == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	unlock, err := s.locks.Lock(ctx, fmt.Sprintf("comment:%d", commentID))
	if err != nil {
		return err
	}
	defer unlock()

	notFound := apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})

	callCtx, cancel := s.call(ctx)
	comment, err := s.comments.GetByID(callCtx, commentID)
	cancel()
	if err != nil {
		return notFoundAs(err, "comment", map[string]any{"comment_id": commentID})
	}
	ticket, err := visibleTicket(ctx, s.storage, s.tickets, actor, comment.TicketID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return notFound
		}
		return err
	}
	if !policy.Can(actor, policy.DeleteComment, policy.Resource{Ticket: ticket, Comment: comment}) {
		return apperrors.NewForbidden("only the author or the ticket creator can delete this comment")
	}

	callCtx, cancel = s.call(ctx)
	err = s.comments.Delete(callCtx, commentID)
	cancel()
	if err != nil {
		return notFoundAs(err, "comment", map[string]any{"comment_id": commentID})
	}

	s.publish(ctx, events.EventCommentDeleted, ticket.ID, actor, events.CommentDeletedPayload{
		CommentID: comment.ID,
		AuthorID:  comment.AuthorID,
	})
	return nil
}

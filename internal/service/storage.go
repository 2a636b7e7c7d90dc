package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/repository"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// storage carries what every service needs around repository calls.
type storage struct {
	timeout    time.Duration
	dispatcher events.Dispatcher
	now        func() time.Time
}

func newStorage(timeout time.Duration, dispatcher events.Dispatcher) storage {
	return storage{timeout: timeout, dispatcher: dispatcher, now: time.Now}
}

// call bounds a single repository round trip.
func (s storage) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s storage) publish(ctx context.Context, eventType events.EventType, ticketID int64, actor *domain.Actor, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorOf(actor),
		Timestamp: s.now(),
		Payload:   payload,
	})
}

// notFoundAs turns the repository sentinel into the client-facing error for resource.
func notFoundAs(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return err
}

func preview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max-3]) + "..."
}

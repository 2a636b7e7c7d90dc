package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublish(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()
	var seen []int

	bus.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, 1)
		return errors.New("first handler failed")
	})
	bus.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, 2)
		panic("boom")
	})
	bus.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, 3)
		return nil
	})
	assert.Equal(t, 3, bus.Subscribers(EventTicketCreated))

	err := bus.Publish(ctx, Event{Type: EventTicketCreated, TicketID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket_created subscriber 0: first handler failed")
	assert.Contains(t, err.Error(), "ticket_created subscriber 1: panic: boom")
	assert.Equal(t, []int{1, 2, 3}, seen)

	t.Run("no subscribers", func(t *testing.T) {
		assert.NoError(t, bus.Publish(ctx, Event{Type: EventCommentAdded}))
		assert.Equal(t, 0, bus.Subscribers(EventCommentAdded))
		assert.Len(t, seen, 3)
	})
}

// Package lifecycle owns ticket status transitions.
//
// Every status may move to every other status; there is no terminal state.
// The only gate is that the ticket's creator triggers the transition.
package lifecycle

import (
	"strings"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/policy"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// Engine validates status transitions. The zero value is ready to use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Transition authorizes actor against ticket and parses target. It returns
// the status to store and never modifies ticket. Moving to the current status
// is accepted.
func (e *Engine) Transition(actor *domain.Actor, ticket *domain.Ticket, target string) (domain.TicketStatus, error) {
	if !policy.Can(actor, policy.ChangeTicketStatus, policy.Resource{Ticket: ticket}) {
		return "", apperrors.NewForbidden("only the ticket creator can change its status")
	}
	next, err := domain.ParseTicketStatus(strings.TrimSpace(target))
	if err != nil {
		return "", apperrors.NewValidationError("invalid status", map[string]any{
			"status":  target,
			"allowed": domain.TicketStatuses,
		})
	}
	return next, nil
}

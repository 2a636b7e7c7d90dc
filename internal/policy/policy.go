// Package policy decides whether an actor may perform an action on a
// resource. Decisions are pure functions of their inputs: the package holds no
// state and never touches storage.
package policy

import "github.com/tracklane/ticket-tracker/internal/domain"

// Action names an operation gated by the engine.
type Action string

const (
	ViewTicketList     Action = "ticket/list"
	ViewTicket         Action = "ticket/view"
	CreateTicket       Action = "ticket/create"
	ChangeTicketStatus Action = "ticket/status"
	EditTicket         Action = "ticket/edit"
	ManageAssignments  Action = "ticket/assignments"
	ListUsers          Action = "user/list"
	ViewUser           Action = "user/view"
	ListComments       Action = "comment/list"
	CreateComment      Action = "comment/create"
	DeleteComment      Action = "comment/delete"
	Register           Action = "session/register"
	Login              Action = "session/login"
)

// Resource carries the objects a rule may inspect. Fields irrelevant to an action stay nil.
type Resource struct {
	Ticket  *domain.Ticket
	Comment *domain.Comment
}

// Rule evaluates a single action. It is only invoked for authenticated actors
// unless the action is listed in anonymousOnly.
type Rule func(actor *domain.Actor, res Resource) bool

var rules = map[Action]Rule{
	ViewTicketList:     authenticated,
	ViewTicket:         canViewTicket,
	CreateTicket:       admin,
	ChangeTicketStatus: ticketCreator,
	EditTicket:         ticketCreator,
	ManageAssignments:  ticketCreator,
	ListUsers:          admin,
	ViewUser:           authenticated,
	ListComments:       canViewTicket,
	CreateComment:      canViewTicket,
	DeleteComment:      commentAuthorOrTicketCreator,
}

var anonymousOnly = map[Action]struct{}{
	Register: {},
	Login:    {},
}

// Can reports whether actor may perform action on res. A nil actor is anonymous
// and is denied everything except registering and logging in. Unknown actions are denied.
func Can(actor *domain.Actor, action Action, res Resource) bool {
	if _, ok := anonymousOnly[action]; ok {
		return actor == nil
	}
	if actor == nil {
		return false
	}
	rule, ok := rules[action]
	if !ok {
		return false
	}
	return rule(actor, res)
}

// VisibleInList reports whether ticket belongs in actor's ticket list.
// Admins see every ticket, everyone else only tickets they are assigned to.
func VisibleInList(actor *domain.Actor, ticket *domain.Ticket) bool {
	return canViewTicket(actor, Resource{Ticket: ticket})
}

// FilterVisible keeps the tickets actor may list, preserving order.
func FilterVisible(actor *domain.Actor, tickets []domain.Ticket) []domain.Ticket {
	if !Can(actor, ViewTicketList, Resource{}) {
		return []domain.Ticket{}
	}
	visible := make([]domain.Ticket, 0, len(tickets))
	for i := range tickets {
		if VisibleInList(actor, &tickets[i]) {
			visible = append(visible, tickets[i])
		}
	}
	return visible
}

func authenticated(actor *domain.Actor, _ Resource) bool {
	return actor != nil
}

func admin(actor *domain.Actor, _ Resource) bool {
	return actor.IsAdmin()
}

func canViewTicket(actor *domain.Actor, res Resource) bool {
	if actor == nil || res.Ticket == nil {
		return false
	}
	return actor.IsAdmin() || res.Ticket.IsAssigned(actor.UserID)
}

func ticketCreator(actor *domain.Actor, res Resource) bool {
	return actor != nil && res.Ticket != nil && res.Ticket.CreatorID == actor.UserID
}

// commentAuthorOrTicketCreator needs both the comment and the ticket it belongs to.
func commentAuthorOrTicketCreator(actor *domain.Actor, res Resource) bool {
	if actor == nil || res.Comment == nil {
		return false
	}
	if res.Comment.AuthorID == actor.UserID {
		return true
	}
	return res.Ticket != nil && res.Ticket.ID == res.Comment.TicketID && res.Ticket.CreatorID == actor.UserID
}

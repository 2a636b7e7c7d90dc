package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "Open"
	TicketStatusInReview TicketStatus = "InReview"
	TicketStatusClosed   TicketStatus = "Closed"
)

// TicketStatuses lists every valid status.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInReview, TicketStatusClosed}

// ParseTicketStatus accepts only the three known wire values.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	for _, status := range TicketStatuses {
		if string(status) == raw {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown ticket status %q", raw)
}

// Ticket is the aggregate for work items. AssignedUserIDs always contains CreatorID.
type Ticket struct {
	ID              int64
	Title           string
	Description     string
	Status          TicketStatus
	CreatorID       int64
	AssignedUserIDs []int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAssigned reports whether userID is in the ticket's assignment set.
func (t *Ticket) IsAssigned(userID int64) bool {
	for _, id := range t.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// NormalizeAssignees deduplicates ids, keeps first-seen order and puts the creator first.
func NormalizeAssignees(creatorID int64, ids []int64) []int64 {
	seen := map[int64]struct{}{creatorID: {}}
	result := []int64{creatorID}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

package domain

import "time"

// Comment is a message on a ticket thread. Only creation and deletion are supported.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Content   string
	CreatedAt time.Time
}

// CommentView is a comment enriched with the author's current username.
type CommentView struct {
	Comment
	AuthorUsername string
}

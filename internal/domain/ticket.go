package domain

import "time"

// TicketStatus is the two-valued open/closed flag of a ticket.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "a"
	TicketStatusClosed TicketStatus = "f"
)

// Valid reports whether s is one of the two accepted symbols.
func (s TicketStatus) Valid() bool {
	return s == TicketStatusOpen || s == TicketStatusClosed
}

// Ticket ("chamado") is a support request owned by a user.
type Ticket struct {
	ID        int64
	UserID    int64
	Text      string
	Status    TicketStatus
	ImageURL  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether userID owns the ticket.
func (t *Ticket) OwnedBy(userID int64) bool {
	return t != nil && t.UserID == userID
}

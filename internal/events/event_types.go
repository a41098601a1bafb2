package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/chamados-app/chamados-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketUpdated        EventType = "ticket_updated"
	EventTicketDeleted        EventType = "ticket_deleted"
	EventTicketImageDiscarded EventType = "ticket_image_discarded"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	ActorID   int64     `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID, actorID int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketChangedPayload accompanies created and updated events.
type TicketChangedPayload struct {
	Status   domain.TicketStatus `json:"status"`
	HasImage bool                `json:"has_image"`
	Fields   []string            `json:"fields,omitempty"`
}

// DiscardReason tells why an image file is no longer referenced.
type DiscardReason string

const (
	DiscardReplaced DiscardReason = "replaced"
	DiscardCleared  DiscardReason = "cleared"
	DiscardDeleted  DiscardReason = "ticket_deleted"
	DiscardOrphaned DiscardReason = "write_failed"
)

// ImageDiscardedPayload names the file that should be removed.
type ImageDiscardedPayload struct {
	URL    string        `json:"url"`
	Reason DiscardReason `json:"reason"`
}

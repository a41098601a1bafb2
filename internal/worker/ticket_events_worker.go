package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/events"
)

// ImageRemover deletes stored images by their public URL.
type ImageRemover interface {
	RemoveByURL(url string)
}

// StartImageCleanupWorker removes image files once no ticket references them.
func StartImageCleanupWorker(dispatcher events.Dispatcher, images ImageRemover, logger *zap.Logger) {
	if dispatcher == nil || images == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketImageDiscarded, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.ImageDiscardedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", event.Payload)
		}
		logger.Debug("removing discarded image",
			zap.Int64("ticket_id", event.TicketID),
			zap.String("url", payload.URL),
			zap.String("reason", string(payload.Reason)),
		)
		images.RemoveByURL(payload.URL)
		return nil
	})
}

// StartTicketAuditLogger logs ticket lifecycle events.
func StartTicketAuditLogger(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	handler := func(_ context.Context, event events.Event) error {
		logger.Info(string(event.Type),
			zap.String("event_id", event.ID),
			zap.Int64("ticket_id", event.TicketID),
			zap.Int64("actor_id", event.ActorID),
			zap.Any("payload", event.Payload),
		)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, handler)
	dispatcher.Subscribe(events.EventTicketUpdated, handler)
	dispatcher.Subscribe(events.EventTicketDeleted, handler)
}

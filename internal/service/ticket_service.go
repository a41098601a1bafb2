package service

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/events"
	"github.com/chamados-app/chamados-api/internal/repository"
	"github.com/chamados-app/chamados-api/internal/storage"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// ImageSaver stores an uploaded file and returns the generated file name.
type ImageSaver interface {
	Save(fh *multipart.FileHeader) (string, error)
}

// TicketService coordinates ticket workflows, including the lifecycle of
// the image file attached to a ticket.
type TicketService struct {
	tickets    repository.TicketRepository
	images     ImageSaver
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators of the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Images     ImageSaver
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// ImageUpload is a file received with a request and the base URL it will be served from.
type ImageUpload struct {
	File    *multipart.FileHeader
	BaseURL string
}

// TicketCreateInput describes ticket creation. A nil Status means open.
type TicketCreateInput struct {
	Text   string
	Status *string
	Image  *ImageUpload
}

// TicketReplaceInput describes a full update. Without Image the current image is kept.
type TicketReplaceInput struct {
	Text   string
	Status string
	Image  *ImageUpload
}

// OptionalURL distinguishes an absent url_imagem from an explicit null.
type OptionalURL struct {
	Set   bool
	Value *string
}

// TicketPatchInput describes a partial update. An uploaded Image wins over ImageURL.
type TicketPatchInput struct {
	Text     *string
	Status   *string
	ImageURL OptionalURL
	Image    *ImageUpload
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		images:     deps.Images,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// List returns tickets newest first. Administrators see every ticket, other
// users only their own.
func (s *TicketService) List(ctx context.Context, principal *auth.Principal, status *string) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{}
	if !principal.IsAdmin() {
		filter.UserID = &principal.UserID
	}
	if status != nil {
		st, err := parseStatus(*status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	return s.tickets.List(ctx, filter)
}

// Get returns a ticket visible to principal.
func (s *TicketService) Get(ctx context.Context, principal *auth.Principal, id int64) (*domain.Ticket, error) {
	return s.load(ctx, principal, id)
}

// Create opens a ticket owned by principal.
func (s *TicketService) Create(ctx context.Context, principal *auth.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	text := strings.TrimSpace(input.Text)
	status := domain.TicketStatusOpen
	var statusErr error
	if input.Status != nil {
		status, statusErr = parseStatus(*input.Status)
	}
	if text == "" || statusErr != nil {
		return nil, apperrors.NewValidationError(
			"texto (non-empty string) is required and estado must be 'a' or 'f' (defaults to 'a')", nil)
	}

	ticket := &domain.Ticket{
		UserID: principal.UserID,
		Text:   text,
		Status: status,
	}
	if input.Image != nil {
		url, err := s.saveImage(input.Image)
		if err != nil {
			return nil, err
		}
		ticket.ImageURL = &url
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if ticket.ImageURL != nil {
			s.discardImage(ctx, 0, principal.UserID, *ticket.ImageURL, events.DiscardOrphaned)
		}
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, principal.UserID, events.TicketChangedPayload{
		Status:   ticket.Status,
		HasImage: ticket.ImageURL != nil,
	}))
	return ticket, nil
}

// Replace overwrites text and status. A new image replaces the current one,
// which is then removed; without a new image the current one is kept.
func (s *TicketService) Replace(ctx context.Context, principal *auth.Principal, id int64, input TicketReplaceInput) (*domain.Ticket, error) {
	text := strings.TrimSpace(input.Text)
	status, statusErr := parseStatus(input.Status)
	if text == "" || statusErr != nil {
		return nil, apperrors.NewValidationError(
			"PUT requires texto (non-empty string) and estado ('a' or 'f'); imagem is optional", nil)
	}

	ticket, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	oldURL := ticket.ImageURL

	ticket.Text = text
	ticket.Status = status
	var newURL *string
	if input.Image != nil {
		url, err := s.saveImage(input.Image)
		if err != nil {
			return nil, err
		}
		newURL = &url
		ticket.ImageURL = newURL
	}

	if err := s.update(ctx, principal, ticket, newURL); err != nil {
		return nil, err
	}
	if newURL != nil && oldURL != nil && *oldURL != *newURL {
		s.discardImage(ctx, ticket.ID, principal.UserID, *oldURL, events.DiscardReplaced)
	}

	s.publish(ctx, events.NewEvent(events.EventTicketUpdated, ticket.ID, principal.UserID, events.TicketChangedPayload{
		Status:   ticket.Status,
		HasImage: ticket.ImageURL != nil,
		Fields:   replacedFields(newURL != nil),
	}))
	return ticket, nil
}

// Patch changes any of text, status and image. An explicit null url_imagem
// clears the image; any other url_imagem value is rejected.
func (s *TicketService) Patch(ctx context.Context, principal *auth.Principal, id int64, input TicketPatchInput) (*domain.Ticket, error) {
	wantsClear := input.ImageURL.Set && input.ImageURL.Value == nil
	if input.Text == nil && input.Status == nil && input.Image == nil && !wantsClear {
		return nil, apperrors.NewValidationError("send at least one field to update", nil)
	}

	var text string
	if input.Text != nil {
		text = strings.TrimSpace(*input.Text)
		if text == "" {
			return nil, apperrors.NewValidationError("texto must be a non-empty string", map[string]any{"field": "texto"})
		}
	}
	var status domain.TicketStatus
	if input.Status != nil {
		st, err := parseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		status = st
	}
	if input.ImageURL.Set && input.ImageURL.Value != nil {
		return nil, apperrors.NewValidationError(
			"to change the image send a file in 'imagem', or url_imagem = null to remove it",
			map[string]any{"field": "url_imagem"})
	}

	ticket, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	oldURL := ticket.ImageURL

	fields := []string{}
	if input.Text != nil {
		ticket.Text = text
		fields = append(fields, "texto")
	}
	if input.Status != nil {
		ticket.Status = status
		fields = append(fields, "estado")
	}
	var newURL *string
	switch {
	case input.Image != nil:
		url, err := s.saveImage(input.Image)
		if err != nil {
			return nil, err
		}
		newURL = &url
		ticket.ImageURL = newURL
		fields = append(fields, "url_imagem")
	case wantsClear:
		ticket.ImageURL = nil
		fields = append(fields, "url_imagem")
	}

	if err := s.update(ctx, principal, ticket, newURL); err != nil {
		return nil, err
	}
	if oldURL != nil && (ticket.ImageURL == nil || *ticket.ImageURL != *oldURL) {
		reason := events.DiscardReplaced
		if ticket.ImageURL == nil {
			reason = events.DiscardCleared
		}
		s.discardImage(ctx, ticket.ID, principal.UserID, *oldURL, reason)
	}

	s.publish(ctx, events.NewEvent(events.EventTicketUpdated, ticket.ID, principal.UserID, events.TicketChangedPayload{
		Status:   ticket.Status,
		HasImage: ticket.ImageURL != nil,
		Fields:   fields,
	}))
	return ticket, nil
}

// Delete removes the ticket and its image file.
func (s *TicketService) Delete(ctx context.Context, principal *auth.Principal, id int64) error {
	ticket, err := s.load(ctx, principal, id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ticketNotFound(id)
		}
		return err
	}
	if ticket.ImageURL != nil {
		s.discardImage(ctx, ticket.ID, principal.UserID, *ticket.ImageURL, events.DiscardDeleted)
	}
	s.publish(ctx, events.NewEvent(events.EventTicketDeleted, ticket.ID, principal.UserID, nil))
	return nil
}

// load fetches a ticket and hides it from callers that may not manage it.
func (s *TicketService) load(ctx context.Context, principal *auth.Principal, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticketNotFound(id)
		}
		return nil, err
	}
	if !principal.CanManage(ticket.UserID) {
		return nil, ticketNotFound(id)
	}
	return ticket, nil
}

// update persists ticket. A freshly saved image (newURL) is discarded when
// the write fails.
func (s *TicketService) update(ctx context.Context, principal *auth.Principal, ticket *domain.Ticket, newURL *string) error {
	err := s.tickets.Update(ctx, ticket)
	if err == nil {
		return nil
	}
	if newURL != nil {
		s.discardImage(ctx, ticket.ID, principal.UserID, *newURL, events.DiscardOrphaned)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ticketNotFound(ticket.ID)
	}
	return err
}

func (s *TicketService) saveImage(upload *ImageUpload) (string, error) {
	if s.images == nil {
		return "", apperrors.NewInternalError(errors.New("image storage not configured"))
	}
	name, err := s.images.Save(upload.File)
	if err != nil {
		return "", err
	}
	return storage.PublicURL(upload.BaseURL, name), nil
}

func (s *TicketService) discardImage(ctx context.Context, ticketID, actorID int64, url string, reason events.DiscardReason) {
	s.publish(ctx, events.NewEvent(events.EventTicketImageDiscarded, ticketID, actorID, events.ImageDiscardedPayload{
		URL:    url,
		Reason: reason,
	}))
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func parseStatus(raw string) (domain.TicketStatus, error) {
	status := domain.TicketStatus(raw)
	if !status.Valid() {
		return "", apperrors.NewValidationError("estado must be 'a' or 'f'", map[string]any{"field": "estado"})
	}
	return status, nil
}

func replacedFields(withImage bool) []string {
	if withImage {
		return []string{"texto", "estado", "url_imagem"}
	}
	return []string{"texto", "estado"}
}

func ticketNotFound(id int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

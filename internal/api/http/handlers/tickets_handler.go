package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/api/dto"
	"github.com/chamados-app/chamados-api/internal/service"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

const imageField = "imagem"

// TicketsHandler manages /api/chamados.
type TicketsHandler struct {
	service       *service.TicketService
	publicBaseURL string
}

// NewTicketsHandler constructs handler. An empty publicBaseURL derives image
// URLs from the request's scheme and host.
func NewTicketsHandler(ticketService *service.TicketService, publicBaseURL string) *TicketsHandler {
	return &TicketsHandler{service: ticketService, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// ticketForm is a create/replace/patch body read from JSON, urlencoded or multipart input.
type ticketForm struct {
	Text     *string
	Status   *string
	ImageURL service.OptionalURL
	File     *multipart.FileHeader
}

// ListTickets GET /api/chamados.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var status *string
	if raw := c.Query("estado"); raw != "" {
		status = &raw
	}
	tickets, err := h.service.List(c.UserContext(), principal, status)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewTicketList(tickets)))
}

// GetTicket GET /api/chamados/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewTicketResponse(ticket)))
}

// CreateTicket POST /api/chamados.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	form, err := readTicketForm(c)
	if err != nil {
		return err
	}
	input := service.TicketCreateInput{
		Text:   deref(form.Text),
		Status: form.Status,
		Image:  h.upload(c, form.File),
	}
	ticket, err := h.service.Create(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(data(dto.NewTicketResponse(ticket)))
}

// ReplaceTicket PUT /api/chamados/:id.
func (h *TicketsHandler) ReplaceTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	form, err := readTicketForm(c)
	if err != nil {
		return err
	}
	input := service.TicketReplaceInput{
		Text:   deref(form.Text),
		Status: deref(form.Status),
		Image:  h.upload(c, form.File),
	}
	ticket, err := h.service.Replace(c.UserContext(), principal, id, input)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewTicketResponse(ticket)))
}

// PatchTicket PATCH /api/chamados/:id.
func (h *TicketsHandler) PatchTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	form, err := readTicketForm(c)
	if err != nil {
		return err
	}
	input := service.TicketPatchInput{
		Text:     form.Text,
		Status:   form.Status,
		ImageURL: form.ImageURL,
		Image:    h.upload(c, form.File),
	}
	ticket, err := h.service.Patch(c.UserContext(), principal, id, input)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewTicketResponse(ticket)))
}

// DeleteTicket DELETE /api/chamados/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), principal, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *TicketsHandler) upload(c *fiber.Ctx, file *multipart.FileHeader) *service.ImageUpload {
	if file == nil {
		return nil
	}
	base := h.publicBaseURL
	if base == "" {
		base = c.BaseURL()
	}
	return &service.ImageUpload{File: file, BaseURL: base}
}

func readTicketForm(c *fiber.Ctx) (ticketForm, error) {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		mf, err := c.MultipartForm()
		if err != nil {
			return ticketForm{}, apperrors.NewValidationError("invalid multipart payload", nil)
		}
		form := ticketForm{
			Text:     firstValue(mf.Value, "texto"),
			Status:   firstValue(mf.Value, "estado"),
			ImageURL: formURL(firstValue(mf.Value, "url_imagem")),
		}
		if files := mf.File[imageField]; len(files) > 0 {
			form.File = files[0]
		}
		return form, nil
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		args := c.Request().PostArgs()
		return ticketForm{
			Text:     argValue(args.Has("texto"), args.Peek("texto")),
			Status:   argValue(args.Has("estado"), args.Peek("estado")),
			ImageURL: formURL(argValue(args.Has("url_imagem"), args.Peek("url_imagem"))),
		}, nil
	default:
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			return ticketForm{}, nil
		}
		var req dto.TicketRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return ticketForm{}, apperrors.NewValidationError("invalid payload", nil)
		}
		text, err := jsonString(req.Text, "texto")
		if err != nil {
			return ticketForm{}, err
		}
		status, err := jsonString(req.Status, "estado")
		if err != nil {
			return ticketForm{}, err
		}
		return ticketForm{Text: text, Status: status, ImageURL: jsonURL(req.ImageURL)}, nil
	}
}

// jsonString returns nil for an absent key and rejects anything but a string.
func jsonString(raw json.RawMessage, field string) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if string(raw) == "null" || json.Unmarshal(raw, &s) != nil {
		return nil, apperrors.NewValidationError(field+" must be a string", map[string]any{"field": field})
	}
	return &s, nil
}

// jsonURL maps an absent url_imagem to unset and JSON null to a clear request.
func jsonURL(raw json.RawMessage) service.OptionalURL {
	if len(raw) == 0 {
		return service.OptionalURL{}
	}
	if string(raw) == "null" {
		return service.OptionalURL{Set: true}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	return service.OptionalURL{Set: true, Value: &s}
}

// formURL treats an empty or "null" form value as a clear request, since
// forms cannot carry a JSON null.
func formURL(v *string) service.OptionalURL {
	if v == nil {
		return service.OptionalURL{}
	}
	if *v == "" || *v == "null" {
		return service.OptionalURL{Set: true}
	}
	return service.OptionalURL{Set: true, Value: v}
}

func firstValue(values map[string][]string, key string) *string {
	if vs, ok := values[key]; ok && len(vs) > 0 {
		v := vs[0]
		return &v
	}
	return nil
}

func argValue(present bool, raw []byte) *string {
	if !present {
		return nil
	}
	v := string(raw)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

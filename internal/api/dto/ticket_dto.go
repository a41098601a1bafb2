package dto

import (
	"encoding/json"
	"time"

	"github.com/chamados-app/chamados-api/internal/domain"
)

// TicketRequest is the JSON body of create, replace and patch. Raw fields
// tell an absent key apart from an explicit null.
type TicketRequest struct {
	Text     json.RawMessage `json:"texto"`
	Status   json.RawMessage `json:"estado"`
	ImageURL json.RawMessage `json:"url_imagem"`
}

// TicketResponse keeps the column names of the "Chamados" table.
type TicketResponse struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"Usuarios_id"`
	Text      string              `json:"texto"`
	Status    domain.TicketStatus `json:"estado"`
	ImageURL  *string             `json:"url_imagem"`
	CreatedAt time.Time           `json:"data_criacao"`
	UpdatedAt time.Time           `json:"data_atualizacao"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Text:      t.Text,
		Status:    t.Status,
		ImageURL:  t.ImageURL,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// NewTicketList maps a slice of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

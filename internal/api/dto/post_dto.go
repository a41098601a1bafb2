package dto

import (
	"encoding/json"
	"time"

	"github.com/chamados-app/chamados-api/internal/domain"
)

// PostRequest accepts usuario_id as a JSON number or numeric string.
type PostRequest struct {
	UserID *json.Number `json:"usuario_id"`
	Text   *string      `json:"texto"`
}

// PostResponse mirrors the post table.
type PostResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"usuario_id"`
	Text      string    `json:"texto"`
	CreatedAt time.Time `json:"data_criacao"`
}

// NewPostResponse maps a domain post.
func NewPostResponse(p *domain.Post) PostResponse {
	return PostResponse{ID: p.ID, UserID: p.UserID, Text: p.Text, CreatedAt: p.CreatedAt}
}

// NewPostList maps a slice of posts.
func NewPostList(posts []domain.Post) []PostResponse {
	items := make([]PostResponse, 0, len(posts))
	for i := range posts {
		items = append(items, NewPostResponse(&posts[i]))
	}
	return items
}

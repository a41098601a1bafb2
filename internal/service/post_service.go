package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/repository"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// PostService manages the public post board.
type PostService struct {
	posts repository.PostRepository
}

// PostInput is the payload of create and full update. Nil fields are missing.
type PostInput struct {
	UserID *int64
	Text   *string
}

// NewPostService constructs the service.
func NewPostService(posts repository.PostRepository) *PostService {
	return &PostService{posts: posts}
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]domain.Post, error) {
	return s.posts.List(ctx)
}

// ListByUser returns the posts of one user, newest first.
func (s *PostService) ListByUser(ctx context.Context, userID int64) ([]domain.Post, error) {
	if userID <= 0 {
		return nil, apperrors.NewValidationError("invalid usuarioId", map[string]any{"field": "usuarioId"})
	}
	return s.posts.ListByUser(ctx, userID)
}

// Get returns one post.
func (s *PostService) Get(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, postError(err, id)
	}
	return post, nil
}

// Create stores a post for an existing user.
func (s *PostService) Create(ctx context.Context, input PostInput) (*domain.Post, error) {
	userID, text, err := validatePost(input)
	if err != nil {
		return nil, err
	}
	post := &domain.Post{UserID: userID, Text: text}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, postError(err, 0)
	}
	return post, nil
}

// Replace overwrites author and text of a post.
func (s *PostService) Replace(ctx context.Context, id int64, input PostInput) (*domain.Post, error) {
	userID, text, err := validatePost(input)
	if err != nil {
		return nil, err
	}
	post := &domain.Post{ID: id, UserID: userID, Text: text}
	if err := s.posts.Replace(ctx, post); err != nil {
		return nil, postError(err, id)
	}
	return post, nil
}

// Patch changes author and/or text.
func (s *PostService) Patch(ctx context.Context, id int64, input PostInput) (*domain.Post, error) {
	if input.UserID == nil && input.Text == nil {
		return nil, apperrors.NewValidationError("send at least one field to update", nil)
	}
	patch := repository.PostPatch{}
	if input.UserID != nil {
		if *input.UserID <= 0 {
			return nil, invalidPostUser()
		}
		patch.UserID = input.UserID
	}
	if input.Text != nil {
		text, err := validatePostText(*input.Text)
		if err != nil {
			return nil, err
		}
		patch.Text = &text
	}
	post, err := s.posts.Patch(ctx, id, patch)
	if err != nil {
		return nil, postError(err, id)
	}
	return post, nil
}

// Delete removes a post.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return postError(err, id)
	}
	return nil
}

func validatePost(input PostInput) (int64, string, error) {
	if input.UserID == nil || *input.UserID <= 0 {
		return 0, "", invalidPostUser()
	}
	if input.Text == nil {
		return 0, "", apperrors.NewValidationError("texto must be a string", map[string]any{"field": "texto"})
	}
	text, err := validatePostText(*input.Text)
	if err != nil {
		return 0, "", err
	}
	return *input.UserID, text, nil
}

func validatePostText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperrors.NewValidationError("texto must not be empty", map[string]any{"field": "texto"})
	}
	if utf8.RuneCountInString(text) > domain.PostTextMaxLen {
		return "", apperrors.NewValidationError("texto must have at most 280 characters", map[string]any{"field": "texto"})
	}
	return text, nil
}

func invalidPostUser() error {
	return apperrors.NewValidationError("usuario_id must be an integer > 0", map[string]any{"field": "usuario_id"})
}

func postError(err error, id int64) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("post", map[string]any{"id": id})
	case apperrors.IsForeignKeyViolation(err):
		return apperrors.NewValidationError("usuario_id does not exist", map[string]any{"field": "usuario_id"})
	}
	return err
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/api/dto"
	"github.com/chamados-app/chamados-api/internal/service"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// PostsHandler manages /api/posts.
type PostsHandler struct {
	service *service.PostService
}

// NewPostsHandler constructs handler.
func NewPostsHandler(postService *service.PostService) *PostsHandler {
	return &PostsHandler{service: postService}
}

// ListPosts GET /api/posts.
func (h *PostsHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewPostList(posts)))
}

// ListUserPosts GET /api/posts/usuario/:usuarioId.
func (h *PostsHandler) ListUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "usuarioId")
	if err != nil {
		return err
	}
	posts, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewPostList(posts)))
}

// GetPost GET /api/posts/:id.
func (h *PostsHandler) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewPostResponse(post)))
}

// CreatePost POST /api/posts.
func (h *PostsHandler) CreatePost(c *fiber.Ctx) error {
	input, err := readPostInput(c)
	if err != nil {
		return err
	}
	post, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(data(dto.NewPostResponse(post)))
}

// ReplacePost PUT /api/posts/:id.
func (h *PostsHandler) ReplacePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	input, err := readPostInput(c)
	if err != nil {
		return err
	}
	post, err := h.service.Replace(c.UserContext(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewPostResponse(post)))
}

// PatchPost PATCH /api/posts/:id.
func (h *PostsHandler) PatchPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	input, err := readPostInput(c)
	if err != nil {
		return err
	}
	post, err := h.service.Patch(c.UserContext(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewPostResponse(post)))
}

// DeletePost DELETE /api/posts/:id.
func (h *PostsHandler) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func readPostInput(c *fiber.Ctx) (service.PostInput, error) {
	var req dto.PostRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return service.PostInput{}, apperrors.NewValidationError("invalid payload", nil)
		}
	}
	input := service.PostInput{Text: req.Text}
	if req.UserID != nil {
		uid, err := req.UserID.Int64()
		if err != nil {
			return service.PostInput{}, apperrors.NewValidationError("usuario_id must be an integer > 0", map[string]any{"field": "usuario_id"})
		}
		input.UserID = &uid
	}
	return input, nil
}

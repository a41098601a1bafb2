package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/api/dto"
	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/service"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// UsersHandler exposes account and session endpoints.
type UsersHandler struct {
	auth   *service.AuthService
	cookie auth.RefreshCookie
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookie auth.RefreshCookie) *UsersHandler {
	return &UsersHandler{auth: authService, cookie: cookie}
}

// Register handles POST /api/usuarios/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return h.respondWithTokens(c, http.StatusCreated, res)
}

// Login handles POST /api/usuarios/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.respondWithTokens(c, http.StatusOK, res)
}

// Refresh handles POST /api/usuarios/refresh. The refresh cookie is rotated;
// an unusable cookie is cleared.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	res, err := h.auth.Refresh(c.UserContext(), h.cookie.Read(c))
	if err != nil {
		h.cookie.Clear(c)
		return err
	}
	return h.respondWithTokens(c, http.StatusOK, res)
}

// Logout handles POST /api/usuarios/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	h.cookie.Clear(c)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /api/usuarios/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Me(c.UserContext(), principal.UserID)
	if err != nil {
		return err
	}
	return c.JSON(data(dto.NewUserResponse(user)))
}

func (h *UsersHandler) respondWithTokens(c *fiber.Ctx, status int, res *service.AuthResult) error {
	h.cookie.Set(c, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	return c.Status(status).JSON(data(dto.AuthResponse{
		TokenType:   "Bearer",
		AccessToken: res.Tokens.AccessToken,
		ExpiresIn:   int64(h.auth.TokenManager().AccessTTL().Seconds()),
		User:        dto.NewUserResponse(res.User),
	}))
}

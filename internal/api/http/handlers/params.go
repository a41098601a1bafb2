package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/chamados-app/chamados-api/internal/auth"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

// parseID reads a positive integer route parameter.
func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{"param": name})
	}
	return id, nil
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func data(v any) fiber.Map {
	return fiber.Map{"data": v}
}

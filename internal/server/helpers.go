package server

import (
	"log/slog"

	"socialfeed/internal/models"
	"socialfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status its code maps to. Storage failures
// are logged with their cause since the client only sees a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		observability.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}

// parseBody decodes the JSON request body into dest, writing a 400 on failure.
// Callers should check: if !ok { return nil }
func parseBody(c *fiber.Ctx, dest any) bool {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return false
	}
	return true
}

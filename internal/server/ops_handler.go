package server

import (
	"encoding/json"

	"socialfeed/internal/identity"
	"socialfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type operationRequest struct {
	Operation string          `json:"operation"`
	Input     json.RawMessage `json:"input"`
}

// ExecuteOperation handles POST /api/ops, the single typed entry point for
// every domain operation and query.
func (s *Server) ExecuteOperation(c *fiber.Ctx) error {
	var req operationRequest
	if !parseBody(c, &req) {
		return nil
	}

	op, err := service.DecodeOperation(req.Operation, req.Input)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	result, err := s.feed.Execute(ctx, identity.FromContext(ctx), op)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

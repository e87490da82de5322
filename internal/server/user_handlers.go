package server

import (
	"socialfeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// RegisterUser handles POST /api/users/register
func (s *Server) RegisterUser(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	user, err := s.feed.RegisterUser(c.UserContext(), middleware.CallerFrom(c), req.Username, req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// UpdateMyUsername handles PATCH /api/users/me
func (s *Server) UpdateMyUsername(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if !parseBody(c, &req) {
		return nil
	}

	user, err := s.feed.UpdateUsername(c.UserContext(), middleware.CallerFrom(c), req.Username)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUser handles GET /api/users/:id
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.feed.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetUserByIdentity handles GET /api/users/identity/:identityId
func (s *Server) GetUserByIdentity(c *fiber.Ctx) error {
	user, err := s.feed.GetUserByIdentity(c.UserContext(), c.Params("identityId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

package server

import (
	"socialfeed/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Body string `json:"body"`
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.feed.ListPosts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.feed.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if !parseBody(c, &req) {
		return nil
	}

	post, err := s.feed.CreatePost(c.UserContext(), middleware.CallerFrom(c), req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.feed.DeletePost(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": id})
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req postRequest
	if !parseBody(c, &req) {
		return nil
	}

	post, err := s.feed.CreateComment(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	post, err := s.feed.DeleteComment(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), c.Params("commentId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// LikePost handles POST /api/posts/:id/like. Liking twice removes the like.
func (s *Server) LikePost(c *fiber.Ctx) error {
	post, err := s.feed.LikePost(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

package server

import (
	"log/slog"
	"strings"

	"socialfeed/internal/models"
	"socialfeed/internal/notifications"
	"socialfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/samber/lo"
)

const topicsLocal = "topics"

// WebsocketUpgrade validates the ?topics= filter before the connection is
// upgraded so a bad filter gets a plain 400 instead of a dead socket.
func (s *Server) WebsocketUpgrade(c *fiber.Ctx) error {
	topics, err := notifications.ParseTopics(c.Query("topics"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(err.Error()))
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(topicsLocal, topics)
	return c.Next()
}

// WebsocketHandler streams change events for the requested topics, or all
// topics when none are given. Subscriptions are public.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		topics, _ := conn.Locals(topicsLocal).([]notifications.Topic)

		if err := s.hub.Serve(conn, topics); err != nil {
			observability.Logger.Warn("websocket subscription rejected",
				slog.String("topics", strings.Join(lo.Map(topics, func(t notifications.Topic, _ int) string { return string(t) }), ",")),
				slog.String("error", err.Error()),
			)
		}
	})
}

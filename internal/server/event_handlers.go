package server

import (
	"log/slog"

	"akinmueble/internal/middleware"
	"akinmueble/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WatchPropertyRequests checks the property exists before the websocket
// upgrade so a bad id gets a normal JSON error.
func (s *Server) WatchPropertyRequests(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	id, err := parseID(c, "propertyId")
	if err != nil {
		return nil
	}
	if _, err := s.store.Properties.GetByID(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	c.Locals("propertyID", id)
	return c.Next()
}

// RequestEventsHandler streams the lifecycle events of one property's
// requests to the connected client.
func (s *Server) RequestEventsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		propertyID, ok := conn.Locals("propertyID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		sub, err := s.hub.Register(propertyID, conn)
		if err != nil {
			middleware.Logger.Warn("request events: register failed",
				slog.Uint64("property_id", uint64(propertyID)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go sub.WritePump()
		sub.ReadPump()
	})
}

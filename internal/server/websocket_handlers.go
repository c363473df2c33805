package server

import (
	"context"
	"log/slog"
	"time"

	"monolith/internal/featureflags"
	"monolith/internal/middleware"
	"monolith/internal/models"
	"monolith/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	eventPresenceChanged  = "presence.changed"
	eventPresenceSnapshot = "presence.snapshot"
)

// RealtimeEnabled guards /api/ws: the request must be a websocket upgrade,
// the realtime flag must be on for the caller and a hub must be running.
func (s *Server) RealtimeEnabled() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewBadRequestError("WebSocket upgrade required"))
		}
		if !s.featureFlags.EnabledOr(featureflags.Realtime, currentUserID(c), true) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundMessage("Realtime is disabled."))
		}
		if s.hub == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"message": "Realtime is unavailable.",
			})
		}
		return c.Next()
	}
}

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
// @Summary Realtime event stream
// @Description Delivers {type, payload} events for the authenticated user
// @Tags realtime
// @Security BearerAuth
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		ctx := s.backgroundContext()
		connections := s.connectionIDs(ctx, uid)
		s.notifyPresence(ctx, uid, connections, "online")
		s.sendPresenceSnapshot(conn, connections)

		go client.WritePump()
		client.ReadPump()

		if !s.hub.IsOnline(uid) {
			s.notifyPresence(s.backgroundContext(), uid, connections, "offline")
		}
	})
}

func (s *Server) backgroundContext() context.Context {
	if s.shutdownCtx != nil {
		return s.shutdownCtx
	}
	return context.Background()
}

// connectionIDs lists the accepted connections of userID. Errors degrade to
// an empty list so the socket still opens.
func (s *Server) connectionIDs(ctx context.Context, userID uint) []uint {
	overview, err := s.connectionService.List(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load connections for presence",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	ids := make([]uint, 0, len(overview.Connections))
	for _, u := range overview.Connections {
		ids = append(ids, u.ID)
	}
	return ids
}

func (s *Server) notifyPresence(ctx context.Context, userID uint, connections []uint, status string) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"user_id":    userID,
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, id := range connections {
		if err := s.notifier.Emit(ctx, id, eventPresenceChanged, payload); err != nil {
			middleware.Logger.WarnContext(ctx, "presence event failed",
				slog.Uint64("user_id", uint64(id)),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Server) sendPresenceSnapshot(conn *websocket.Conn, connections []uint) {
	online := make([]uint, 0, len(connections))
	for _, id := range connections {
		if s.hub.IsOnline(id) {
			online = append(online, id)
		}
	}
	msg, err := notifications.EncodeEvent(eventPresenceSnapshot, map[string]any{"user_ids": online})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		middleware.Logger.Warn("failed to write presence snapshot", slog.String("error", err.Error()))
	}
}

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/version"
)

const leaveTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// --- Diagnostics ---

// handleStats returns local and global connection counts. A store outage is
// surfaced explicitly rather than reported as a stale or fabricated count.
func (s *Server) handleStats(c echo.Context) error {
	local := s.registry.Size()

	global, err := s.coord.Count(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":                   "degraded",
			"local_active_connections": local,
			"error":                    err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":                    "ok",
		"local_active_connections":  local,
		"global_active_connections": global,
	})
}

// --- Broadcast ---

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	ctx := c.Request().Context()
	if err := s.relay.Publish(ctx, []byte(req.Message)); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"published": false,
			"error":     err.Error(),
		})
	}

	resp := map[string]any{"published": true}
	if global, err := s.coord.Count(ctx); err == nil {
		resp["global_active_connections"] = global
	}
	return c.JSON(http.StatusOK, resp)
}

// --- WebSocket ---

// handleWebSocket is the accept/disconnect hook pair for one client: local
// registration, global join, echo read pump, and exactly-once teardown.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !s.drain.Accepting() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server is draining"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	dc := &domain.Connection{
		LocalID:  s.nextLocalID.Add(1),
		GlobalID: domain.NewGlobalID(s.workerID),
		Sender:   newConnWriter(conn),
	}

	if err := s.registry.Register(dc); err != nil {
		// ErrAlreadyRegistered here means a local-id collision, which is a
		// bug worth shouting about, not something to paper over.
		slog.Error("Local registration failed", "conn_id", dc.GlobalID, "error", err)
		_ = dc.Sender.Close()
		return nil
	}

	// Global join strictly after local registration: a globally-visible id
	// always has a live local owner. Join failure aborts the accept.
	if err := s.coord.Join(c.Request().Context(), dc.GlobalID); err != nil {
		slog.Warn("Global join failed, rejecting connection", "conn_id", dc.GlobalID, "error", err)
		if _, uerr := s.registry.Unregister(dc.LocalID); uerr != nil {
			slog.Error("Unregister after failed join", "conn_id", dc.GlobalID, "error", uerr)
		}
		return nil
	}

	s.logCounts(c.Request().Context(), "WS connected")

	// Echo read pump: blocks until the client goes away or a send fails.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if err := dc.Sender.Send(append([]byte("echo: "), data...)); err != nil {
			break
		}
	}

	// Disconnect hook, exactly once. ErrNotFound means the registry already
	// removed this connection (forced close or failed broadcast send) and
	// its global entry is being handled by that path.
	if _, err := s.registry.Unregister(dc.LocalID); err == nil {
		leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		_ = s.coord.Leave(leaveCtx, dc.GlobalID)
		s.logCounts(leaveCtx, "WS disconnected")
	}

	return nil
}

func (s *Server) logCounts(ctx context.Context, msg string) {
	global, err := s.coord.Count(ctx)
	if err != nil {
		slog.Info(msg, "worker", s.workerID, "local", s.registry.Size(), "global", "unknown")
		return
	}
	slog.Info(msg, "worker", s.workerID, "local", s.registry.Size(), "global", global)
}

// --- Version ---

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

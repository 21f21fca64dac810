package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth checks the shared store and reports per-component health.
// Mirrors the diagnostic contract: a store outage yields an explicit
// "degraded" status, never a fabricated count.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	storeOK := true
	if err := s.pinger.Ping(ctx); err != nil {
		slog.Warn("Store health check failed", "error", err)
		storeOK = false
	}

	ws := map[string]any{"local_active_connections": s.registry.Size()}
	if global, err := s.coord.Count(ctx); err == nil {
		ws["global_active_connections"] = global
	}

	status := "ok"
	if !storeOK {
		status = "degraded"
	}

	resp := map[string]any{
		"status":    status,
		"state":     s.drain.State().String(),
		"uptime":    time.Since(s.startTime).Seconds(),
		"redis":     map[string]any{"ok": storeOK},
		"websocket": ws,
	}

	if s.workers != nil && storeOK {
		if active, err := s.workers.ActiveWorkers(ctx); err == nil {
			resp["active_workers"] = active
		}
	}

	return c.JSON(http.StatusOK, resp)
}

package server

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/config"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/coordinator"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/metrics"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/registry"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/relay"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/shutdown"
)

// storePinger is a minimal interface for shared-store health checks.
type storePinger interface {
	Ping(ctx context.Context) error
}

// workerLister reports live worker processes (nil if the worker heartbeat
// registry is not configured).
type workerLister interface {
	ActiveWorkers(ctx context.Context) ([]string, error)
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	registry    *registry.Registry
	coord       *coordinator.Coordinator
	relay       *relay.Relay
	drain       *shutdown.Coordinator
	pinger      storePinger
	workers     workerLister
	promReg     *prometheus.Registry
	workerID    int
	nextLocalID atomic.Uint64
	startTime   time.Time
}

func NewServer(
	cfg *config.Config,
	reg *registry.Registry,
	coord *coordinator.Coordinator,
	rel *relay.Relay,
	drain *shutdown.Coordinator,
	pinger storePinger,
	workers workerLister,
	promReg *prometheus.Registry,
	workerID int,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		config:    cfg,
		registry:  reg,
		coord:     coord,
		relay:     rel,
		drain:     drain,
		pinger:    pinger,
		workers:   workers,
		promReg:   promReg,
		workerID:  workerID,
		startTime: time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleStats)
	s.echo.POST("/broadcast", s.handleBroadcast)
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/version", s.handleVersion)
	if s.promReg != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.promReg)))
	}
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

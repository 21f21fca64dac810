package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/config"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/coordinator"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/domain"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/logging"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/metrics"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/redis"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/registry"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/relay"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/server"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/shutdown"
	"github.com/Sergii-Kolosai/websocket-graceful-shutdown/internal/version"
)

const leaveTimeout = 5 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, cbMetrics *metrics.CircuitBreakerMetrics) *redis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewCircuitBreakerHook(cbMetrics))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// runGracefulShutdown waits for a termination signal, then drains: new
// connections are rejected immediately, the broadcast listener keeps running
// so attached clients still receive messages, and the process is released
// only when the fleet-wide connection count reaches zero or the deadline
// forces the remaining local connections closed.
func runGracefulShutdown(
	srv *server.Server,
	drain *shutdown.Coordinator,
	reg *registry.Registry,
	stopBackground context.CancelFunc,
	redisClient *redis.Client,
) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received")

		finalState := drain.Drain(context.Background())
		slog.Info("Drain finished", "state", finalState.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Stop the broadcast listener and worker heartbeat only after the
		// drain: clients being drained must keep receiving broadcasts.
		stopBackground()
		reg.Stop()

		if err := redisClient.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}

		slog.Info("Shutdown complete")
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	workerID := os.Getpid()
	slog.Info("Worker starting", "env", cfg.AppEnv, "port", cfg.Port, "worker", workerID)

	promReg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(promReg)
	cbMetrics := metrics.NewCircuitBreakerMetrics(promReg)

	redisClient := setupRedis(context.Background(), cfg, cbMetrics)

	members := redis.NewMembership(redisClient, cfg.ConnectionsKey)
	broker := redis.NewBroker(redisClient, cfg.BroadcastChannel)
	coord := coordinator.New(members, workerID)

	// Registry-initiated teardowns (failed sends, forced closes) still owe
	// the global registry a leave.
	onDead := func(c *domain.Connection) {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		_ = coord.Leave(ctx, c.GlobalID)
	}
	reg := registry.New(onDead, wsMetrics)

	rel := relay.New(broker, reg, workerID, wsMetrics)

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	go func() {
		if err := rel.Run(backgroundCtx); err != nil {
			slog.Error("Broadcast listener failed", "error", err)
		}
	}()

	workers := redis.NewWorkerRegistry(redisClient, fmt.Sprintf("%d", workerID), cfg.WorkerHeartbeat, version.Get().Version, clock)
	go workers.Start(backgroundCtx)

	drain := shutdown.New(coord, reg, cfg.ShutdownTimeout, cfg.ShutdownPoll, clock, workerID, wsMetrics)

	srv := server.NewServer(cfg, reg, coord, rel, drain, redisClient, workers, promReg, workerID)

	done := runGracefulShutdown(srv, drain, reg, stopBackground, redisClient)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

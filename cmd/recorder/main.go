// recorder connects to the dashboard stream, mirrors channel state, records
// every update to TimescaleDB, and falls back to REST polling while the
// stream is down.
// Usage: go run ./cmd/recorder --config configs/swarm.example.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantdegen/swarm-stream/internal/api"
	"github.com/quantdegen/swarm-stream/internal/config"
	"github.com/quantdegen/swarm-stream/internal/database"
	"github.com/quantdegen/swarm-stream/internal/mirror"
	"github.com/quantdegen/swarm-stream/internal/poller"
	"github.com/quantdegen/swarm-stream/internal/recorder"
	"github.com/quantdegen/swarm-stream/internal/stream"
	"github.com/quantdegen/swarm-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/swarm.example.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateDatabase(); err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(1)
	}

	wsURL, err := cfg.WSEndpoint()
	if err != nil {
		logger.Error("invalid endpoint", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"endpoint", cfg.Endpoint.BaseURL,
		"ws_url", wsURL,
		"channels", cfg.Channels,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected")

	// REST client for fallback polling
	apiClient := api.NewClient(
		cfg.Endpoint.BaseURL,
		cfg.Endpoint.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(30*time.Second),
		api.WithRetries(3, time.Second),
	)

	// Stream controller
	ctrl := stream.New(buildStreamConfig(cfg, wsURL), logger)

	// Mirror holds the latest state per channel
	mir := mirror.New(mirror.WithLogger(logger))
	detachMirror := mir.Attach(ctrl)
	defer detachMirror()

	// Recorder persists every update
	rec := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
	}, pool, logger)
	detachRecorder := rec.Attach(ctrl)
	defer detachRecorder()

	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}

	// Fallback poller refreshes the mirror while the stream is down
	var poll *poller.Poller
	if cfg.Poller.Enabled {
		poll = poller.New(poller.Config{
			Interval:    cfg.Poller.Interval,
			MaxInterval: cfg.Poller.MaxInterval,
			Timeout:     cfg.Poller.Timeout,
		}, apiClient, ctrl, mir, cfg.Channels, logger)

		if err := poll.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}
	}

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, pool, ctrl, mir, rec),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Connect and subscribe
	ctrl.Connect()
	ctrl.Subscribe(cfg.Channels...)

	logger.Info("recorder running",
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown(shutdownCtx)
	ctrl.Disconnect()
	if poll != nil {
		poll.Stop(shutdownCtx)
	}
	rec.Stop(shutdownCtx)

	logger.Info("recorder stopped")
}

// buildStreamConfig maps file settings onto the controller config. Zero
// values fall through to the stream package defaults.
func buildStreamConfig(cfg *config.Config, wsURL string) stream.Config {
	sc := stream.DefaultConfig(wsURL)
	sc.ClientID = cfg.Stream.ClientID
	if cfg.Stream.PingInterval > 0 {
		sc.PingInterval = cfg.Stream.PingInterval
	}
	if cfg.Stream.StaleCheckInterval > 0 {
		sc.StaleCheckInterval = cfg.Stream.StaleCheckInterval
	}
	if cfg.Stream.SilenceThreshold > 0 {
		sc.SilenceThreshold = cfg.Stream.SilenceThreshold
	}
	if cfg.Stream.PongTimeout > 0 {
		sc.PongTimeout = cfg.Stream.PongTimeout
	}
	if cfg.Stream.LatencyWarnThreshold > 0 {
		sc.LatencyWarnThreshold = cfg.Stream.LatencyWarnThreshold
	}
	if cfg.Stream.ReconnectBaseDelay > 0 {
		sc.ReconnectBaseDelay = cfg.Stream.ReconnectBaseDelay
	}
	if cfg.Stream.ReconnectMaxDelay > 0 {
		sc.ReconnectMaxDelay = cfg.Stream.ReconnectMaxDelay
	}
	if cfg.Stream.MaxReconnectAttempts > 0 {
		sc.MaxReconnectAttempts = cfg.Stream.MaxReconnectAttempts
	}
	if cfg.Stream.QueueLimit > 0 {
		sc.QueueLimit = cfg.Stream.QueueLimit
	}
	if cfg.Stream.BufferSize > 0 {
		sc.BufferSize = cfg.Stream.BufferSize
	}
	return sc
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(path string, pool *pgxpool.Pool, ctrl *stream.Controller, mir *mirror.Mirror, rec *recorder.Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check stream
		stats := ctrl.Stats()
		health.Components["stream"] = map[string]any{
			"state":     stats.State.String(),
			"confirmed": stats.ConfirmedChannels,
			"queued":    stats.QueuedCommands,
		}
		if !ctrl.IsOpen() {
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		// Recorder counters
		recStats := rec.Stats()
		health.Components["recorder"] = map[string]any{
			"inserts": recStats.Inserts,
			"errors":  recStats.Errors,
			"dropped": recStats.Dropped,
		}

		health.Components["mirrored_channels"] = len(mir.Channels())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/snapshots", func(w http.ResponseWriter, r *http.Request) {
		channels := mir.Channels()
		out := make(map[string]any, len(channels))
		for _, ch := range channels {
			if s, ok := mir.Snapshot(ch); ok {
				out[ch] = map[string]any{
					"source":      s.Source,
					"received_at": s.ReceivedAt,
					"bytes":       len(s.Data),
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":     len(channels),
			"snapshots": out,
		})
	})

	return mux
}

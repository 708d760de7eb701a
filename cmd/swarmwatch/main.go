// swarmwatch connects to the dashboard stream and prints events to console.
// Usage: go run ./cmd/swarmwatch --config configs/swarm.example.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantdegen/swarm-stream/internal/config"
	"github.com/quantdegen/swarm-stream/internal/mirror"
	"github.com/quantdegen/swarm-stream/internal/stream"
	"github.com/quantdegen/swarm-stream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/swarm.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full payload JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	logger.Info("starting swarmwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	wsURL, err := cfg.WSEndpoint()
	if err != nil {
		logger.Error("invalid endpoint", "error", err)
		os.Exit(1)
	}

	// Build controller
	ctrl := stream.New(buildStreamConfig(cfg, wsURL), logger)

	// Mirror keeps the latest state per channel
	mir := mirror.New(mirror.WithLogger(logger))
	detach := mir.Attach(ctrl)
	defer detach()

	// Console printers
	ctrl.On(stream.EventConnect, func(ev stream.Event) {
		fmt.Printf("[CONNECT] client_id=%s\n", ctrl.ClientID())
	})
	ctrl.On(stream.EventChannelsAvailable, func(ev stream.Event) {
		fmt.Printf("[CHANNELS] available=%v\n", ev.Payload)
	})
	ctrl.On(stream.EventSubscriptionsConfirmed, func(ev stream.Event) {
		fmt.Printf("[SUBSCRIBED] channels=%v\n", ev.Payload)
	})
	ctrl.On(stream.EventStatus, func(ev stream.Event) {
		fmt.Printf("[STATUS] %v\n", ev.Payload)
	})
	ctrl.On(stream.EventReconnecting, func(ev stream.Event) {
		if info, ok := ev.Payload.(stream.ReconnectInfo); ok {
			fmt.Printf("[RECONNECTING] attempt=%d delay=%s\n", info.Attempt, info.Delay)
		}
	})
	ctrl.On(stream.EventLatencyWarning, func(ev stream.Event) {
		if lw, ok := ev.Payload.(stream.LatencyWarning); ok {
			fmt.Printf("[LATENCY] rtt=%s\n", lw.RTT)
		}
	})
	ctrl.On(stream.EventAlert, func(ev stream.Event) {
		if a, ok := ev.Payload.(stream.Alert); ok {
			fmt.Printf("[ALERT %s] %s: %s\n", a.Severity, a.AlertType, a.Message)
		}
	})
	ctrl.On(stream.EventDataUpdate, func(ev stream.Event) {
		du, ok := ev.Payload.(stream.DataUpdate)
		if !ok {
			return
		}
		if *verbose {
			data, _ := json.MarshalIndent(du.Data, "", "  ")
			fmt.Printf("[UPDATE %s] %s\n", du.Channel, data)
		} else {
			fmt.Printf("[UPDATE] channel=%s bytes=%d\n", du.Channel, len(du.Data))
		}
	})
	ctrl.On(stream.EventBroadcast, func(ev stream.Event) {
		if b, ok := ev.Payload.(stream.Broadcast); ok {
			fmt.Printf("[BROADCAST] kind=%s bytes=%d\n", b.Kind, len(b.Data))
		}
	})

	// Connect and subscribe to the configured channels
	ctrl.Connect()
	ctrl.Subscribe(cfg.Channels...)

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Stats printer
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-statsDone:
				return
			case <-ticker.C:
				stats := ctrl.Stats()
				logger.Info("stats",
					"state", stats.State,
					"confirmed", stats.ConfirmedChannels,
					"queued", stats.QueuedCommands,
					"dropped", stats.DroppedCommands,
					"mirrored_channels", len(mir.Channels()),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop",
		"endpoint", wsURL,
		"channels", cfg.Channels,
	)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	close(statsDone)
	ctrl.Disconnect()

	logger.Info("shutdown complete")
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

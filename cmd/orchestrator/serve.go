package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcpfleet/orchestrator/internal/clock"
	"github.com/mcpfleet/orchestrator/internal/config"
	"github.com/mcpfleet/orchestrator/internal/discovery"
	"github.com/mcpfleet/orchestrator/internal/discovery/dockerclient"
	"github.com/mcpfleet/orchestrator/internal/hardening"
	"github.com/mcpfleet/orchestrator/internal/httpserver"
	"github.com/mcpfleet/orchestrator/internal/logging"
	"github.com/mcpfleet/orchestrator/internal/orchestrator"
	"github.com/mcpfleet/orchestrator/internal/protocol"
	"github.com/mcpfleet/orchestrator/internal/registry"
	"github.com/mcpfleet/orchestrator/internal/reload"
	"github.com/mcpfleet/orchestrator/internal/tracing"
	"github.com/mcpfleet/orchestrator/pkg/output"
	"github.com/mcpfleet/orchestrator/pkg/state"
)

const shutdownTimeout = 10 * time.Second
const startupLockTimeout = 5 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestrator daemon",
	Long: `serve starts the HTTP protocol front-end and the periodic discovery
scanner, then blocks until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, buffer := newLogger(cfg)

	printer := output.New()
	printer.Banner(version)

	if err := claimStartup(cfg.Port); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Configure(ctx, cfg.OtelExporterEndpoint, protocol.ServerName)
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	socketPath, err := discovery.ResolveSocket(ctx)
	if err != nil {
		return fmt.Errorf("resolving docker socket: %w", err)
	}

	dclient, err := dockerclient.NewWithHost(discovery.SocketURL(socketPath))
	if err != nil {
		return fmt.Errorf("connecting to docker: %w", err)
	}
	defer dclient.Close()

	platform := discovery.NewDockerPlatform(dclient)
	if err := platform.Ping(ctx); err != nil {
		return err
	}

	c := clock.Real{}

	reg := registry.New(cfg.RegistryPath, cfg.MaxErrorLogEntries, c)
	reg.SetLogger(logging.WithComponent(logger, "registry"))
	if err := reg.Load(); err != nil {
		logger.Warn("loading registry state failed, starting empty", "error", err)
	}

	h := hardening.New(hardening.Config{
		DefaultTimeout:          cfg.MCPTimeout,
		MaxRetries:              cfg.MaxRetries,
		RetryDelay:              cfg.RetryDelay,
		CircuitBreakerThreshold: cfg.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.CircuitBreakerTimeout,
	}, c, func(agentID string) {
		logger.Warn("circuit breaker opened", "agent", agentID)
	})

	scanner := discovery.NewScanner(platform, c, discovery.Config{
		Interval:      cfg.DiscoveryInterval,
		RetryAttempts: cfg.DiscoveryRetryAttempts,
		RetryDelay:    cfg.DiscoveryRetryDelay,
	})
	scanner.SetLogger(logging.WithComponent(logger, "discovery"))

	if cfg.AgentAllowlistFile != "" {
		allowlist, err := discovery.LoadAllowlist(cfg.AgentAllowlistFile)
		if err != nil {
			return fmt.Errorf("loading agent allowlist: %w", err)
		}
		scanner.SetAllowlist(allowlist)
		logger.Info("agent allowlist loaded", "path", cfg.AgentAllowlistFile, "names", len(allowlist.Names), "images", len(allowlist.Images))

		watcher := reload.NewWatcher(cfg.AgentAllowlistFile, func() error {
			reloaded, err := discovery.LoadAllowlist(cfg.AgentAllowlistFile)
			if err != nil {
				return err
			}
			scanner.SetAllowlist(reloaded)
			return nil
		})
		watcher.SetLogger(logging.WithComponent(logger, "reload"))
		go func() {
			if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("allowlist watcher stopped", "error", err)
			}
		}()
	}

	clientFactory := orchestrator.NewClientFactory(cfg.RouterRetryAttempts, cfg.RouterRetryDelay, logging.WithComponent(logger, "router"))
	orch := orchestrator.New(reg, h, c, clientFactory, orchestrator.Config{
		MCPTimeout: cfg.MCPTimeout,
	}, func(context.Context) { scanner.TriggerScan() })
	orch.SetLogger(logging.WithComponent(logger, "orchestrator"))

	events := scanner.Run(ctx)
	go orch.Run(ctx, events)

	instanceID := uuid.NewString()

	reporter := &healthReporter{scanner: scanner, hard: h, store: reg, orch: orch, logs: buffer}
	srv := httpserver.New(orch, c, reporter, cfg.Host, cfg.Port)
	srv.SetLogger(logging.WithComponent(logger, "httpserver"))
	srv.SetInstanceID(instanceID)

	if err := state.Save(&state.DaemonState{PID: os.Getpid(), Port: cfg.Port, StartedAt: c.Now(), InstanceID: instanceID}); err != nil {
		logger.Warn("saving daemon state failed", "error", err)
	}
	defer func() {
		if err := state.Delete(); err != nil {
			logger.Warn("removing daemon state failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("orchestrator listening", "addr", addr)
	printer.Info("orchestrator listening", "addr", addr)

	return httpserver.Serve(ctx, addr, srv.Handler(), shutdownTimeout, logger)
}

// newLogger builds the structured logger described by cfg: redaction
// always applied, JSON or text per LOG_FORMAT, optionally rotated to disk
// via lumberjack when LOG_FILE is set, and always tee'd into an in-memory
// ring buffer so /status can surface recent entries.
func newLogger(cfg config.Config) (*slog.Logger, *logging.Buffer) {
	dest := logging.NewOutput(logging.DefaultFileRotationConfig(cfg.LogFile))

	buffer := logging.NewBuffer(200)

	base := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: dest,
	})

	// logging.New already wraps the primary handler with redaction; the
	// buffer gets its own redacting wrapper so buffered entries are
	// redacted the same way as the primary output.
	tee := slog.New(logging.NewTeeHandler(base.Handler(), logging.NewRedactingHandler(buffer)))
	return tee, buffer
}

// claimStartup enforces single-instance semantics: it cleans up any state
// file left by a dead prior process, fails fast if one is still running,
// then records this process under the daemon lock so a concurrent serve
// invocation sees it immediately instead of racing to bind the same port.
func claimStartup(port int) error {
	return state.WithLock(startupLockTimeout, func() error {
		if _, err := state.CheckAndClean(); err != nil {
			return fmt.Errorf("checking prior daemon state: %w", err)
		}
		if prior, err := state.Load(); err == nil && state.IsRunning(prior) {
			return fmt.Errorf("orchestrator already running with pid %d on port %d", prior.PID, prior.Port)
		}
		return state.Save(&state.DaemonState{PID: os.Getpid(), Port: port, StartedAt: time.Now()})
	})
}

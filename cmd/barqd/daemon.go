package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	barqapi "github.com/oriys/barq/internal/api"
	"github.com/oriys/barq/internal/cache"
	"github.com/oriys/barq/internal/codearchive"
	"github.com/oriys/barq/internal/config"
	"github.com/oriys/barq/internal/driver"
	"github.com/oriys/barq/internal/invoker"
	"github.com/oriys/barq/internal/logging"
	"github.com/oriys/barq/internal/logsink"
	"github.com/oriys/barq/internal/metrics"
	"github.com/oriys/barq/internal/observability"
	"github.com/oriys/barq/internal/pool"
	"github.com/oriys/barq/internal/registry"
	"github.com/oriys/barq/internal/runtime"
	"github.com/oriys/barq/internal/service"
	"github.com/oriys/barq/internal/workspace"
)

// serveCmd runs barqd as a long-lived daemon: it owns the warm pool, the
// Docker driver, and the HTTP API, and keeps running until a termination
// signal arrives. Mirrors the teacher's daemon startup sequence: config
// load, flag overrides, logging/observability init, collaborator
// construction, HTTP server start, signal-handling shutdown loop.
func serveCmd() *cobra.Command {
	var (
		httpAddr              string
		logLevel              string
		idleTTL               time.Duration
		maxContainers         int
		perInvocationLogFiles bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run barqd as a daemon: warm pool + HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("idle-ttl") {
				cfg.Pool.TTL = idleTTL
			}
			if cmd.Flags().Changed("max-containers") {
				cfg.Pool.MaxContainers = maxContainers
			}
			if cmd.Flags().Changed("per-invocation-log-files") {
				cfg.Daemon.PerInvocationLogFiles = perInvocationLogFiles
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: cfg.Observability.Tracing.ServiceName,
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.Init(cfg.Observability.Metrics.Namespace, cfg.Observability.Metrics.HistogramBuckets)
			}

			ctx := context.Background()
			reg, err := registry.NewPostgres(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect registry: %w", err)
			}
			defer reg.Close()

			var store registry.MetadataStore = reg
			if cfg.Redis.Addr != "" {
				redisCache := cache.NewRedisCache(cache.RedisCacheConfig{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				l1 := cache.NewInMemoryCache()
				tiered := cache.NewTieredCache(l1, redisCache, 30*time.Second)
				store = registry.NewCached(reg, cache.NewFunctionCache(tiered, cache.DefaultFunctionCacheTTL))
				logging.Op().Info("metadata cache enabled", "redis_addr", cfg.Redis.Addr)
			}

			drv, err := driver.NewDockerDriver()
			if err != nil {
				return fmt.Errorf("docker driver: %w", err)
			}

			ws, err := workspace.NewManager(cfg.Docker.CodeDir)
			if err != nil {
				return fmt.Errorf("workspace manager: %w", err)
			}

			runtimes := runtime.NewRegistry(cfg.Docker.ImagePrefix)
			p := pool.New(drv, cfg.Pool.MaxContainers, cfg.Pool.TTL)

			sink := logsink.NewRegistryStore(reg)
			inv := invoker.New(store, p, runtimes, ws, drv, sink)
			inv.SetPerInvocationLogFiles(cfg.Daemon.PerInvocationLogFiles)

			archiver, err := codearchive.New(ctx, cfg.S3)
			if err != nil {
				logging.Op().Warn("code archival disabled", "err", err)
			}
			funcService := service.NewFunctionService(store).WithArchiver(archiver)

			logging.Op().Info("barqd daemon started",
				"postgres", cfg.Postgres.DSN,
				"pool_ttl", cfg.Pool.TTL.String(),
				"max_containers", cfg.Pool.MaxContainers,
				"log_level", cfg.Daemon.LogLevel)

			var httpServer *http.Server
			if cfg.Daemon.HTTPAddr != "" {
				httpServer = barqapi.StartHTTPServer(cfg.Daemon.HTTPAddr, barqapi.ServerConfig{
					Registry:  store,
					Functions: funcService,
					Invoker:   inv,
					Pool:      p,
				})
				logging.Op().Info("HTTP API started", "addr", cfg.Daemon.HTTPAddr)
			}

			logging.Op().Info("waiting for signals (Ctrl+C to stop)")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					logging.Op().Info("shutdown signal received")
					if httpServer != nil {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						httpServer.Shutdown(shutdownCtx)
						cancel()
					}
					inv.Shutdown(context.Background())
					return nil
				case <-ticker.C:
					stats := p.Stats()
					logging.Op().Debug("daemon status", "pool_total", stats.Total, "pool_free", stats.Free)
				}
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP API address (e.g. :8080)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().DurationVar(&idleTTL, "idle-ttl", pool.DefaultTTL, "Warm container idle timeout")
	cmd.Flags().IntVar(&maxContainers, "max-containers", pool.DefaultMaxContainers, "Maximum warm containers kept across all functions")
	cmd.Flags().BoolVar(&perInvocationLogFiles, "per-invocation-log-files", false, "Write a per-invocation debug log file into each function's workspace")

	return cmd
}

// Posd - Retail discount quoting that deploys in 60 seconds.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/api"
	"github.com/walldriyan/mypos-sub001/internal/bus"
	"github.com/walldriyan/mypos-sub001/internal/cache"
	"github.com/walldriyan/mypos-sub001/internal/campaign"
	"github.com/walldriyan/mypos-sub001/internal/discount"
	"github.com/walldriyan/mypos-sub001/internal/domain"
	"github.com/walldriyan/mypos-sub001/internal/repository"
	"github.com/walldriyan/mypos-sub001/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("POSD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting posd",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("POSD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Campaign Selector
	selector, err := campaign.NewSelector(repo, cacheImpl, logger)
	if err != nil {
		slog.Error("failed to initialize campaign selector", "error", err)
		os.Exit(1)
	}
	slog.Info("campaign selector initialized")

	// Initialize Discount Engine
	engine := discount.New()
	slog.Info("discount engine initialized")

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("POSD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, selector, engine)

		tenantIDs := []string{}
		if envTenants := os.Getenv("POSD_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, selector, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("posd is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("posd shutdown complete")
}

// applyEnvOverrides applies POSD_* environment overrides on top of the
// tier defaults. Only the knobs that differ per deployment are exposed.
func applyEnvOverrides(cfg *domain.Config) {
	if port := os.Getenv("POSD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("POSD_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if host := os.Getenv("POSD_POSTGRES_HOST"); host != "" {
		cfg.Repository.PostgresHost = host
	}
	if user := os.Getenv("POSD_POSTGRES_USER"); user != "" {
		cfg.Repository.PostgresUser = user
	}
	if pass := os.Getenv("POSD_POSTGRES_PASSWORD"); pass != "" {
		cfg.Repository.PostgresPassword = pass
	}
	if db := os.Getenv("POSD_POSTGRES_DB"); db != "" {
		cfg.Repository.PostgresDB = db
	}
	if addr := os.Getenv("POSD_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if pass := os.Getenv("POSD_REDIS_PASSWORD"); pass != "" {
		cfg.Cache.RedisPassword = pass
	}
	if url := os.Getenv("POSD_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if token := os.Getenv("POSD_NATS_TOKEN"); token != "" {
		cfg.EventBus.NATSToken = token
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                🧾 POSD                    ║")
	fmt.Println("  ║        Retail Discount Engine             ║")
	fmt.Println("  ║      Every rupee accounted for.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /quote                  - Price a cart")
	fmt.Println("    GET  /quotes/{id}            - Get quote by ID")
	fmt.Println("    POST /quotes/{id}/commit     - Commit a quote at checkout")
	fmt.Println("    GET  /campaigns              - List campaigns")
	fmt.Println("    POST /campaigns              - Create a campaign")
	fmt.Println("    GET  /campaigns/{id}         - Get a campaign")
	fmt.Println("    PUT  /campaigns/{id}         - Update a campaign")
	fmt.Println("    DELETE /campaigns/{id}       - Delete a campaign")
	fmt.Println("    GET  /campaigns/{id}/stats   - Campaign redemption stats")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}

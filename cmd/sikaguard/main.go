// SikaGuard - Mobile Money fraud detection from a single SMS.
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sikaguard/sikaguard/internal/api"
	"github.com/sikaguard/sikaguard/internal/bus"
	"github.com/sikaguard/sikaguard/internal/cache"
	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/repository"
	"github.com/sikaguard/sikaguard/internal/risk"
	"github.com/sikaguard/sikaguard/internal/rules"
	"github.com/sikaguard/sikaguard/internal/velocity"
	"github.com/sikaguard/sikaguard/internal/worker"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Structured JSON logging from the first line onward.
	logLevel := slog.LevelInfo
	if os.Getenv("SIKAGUARD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting sikaguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Community defaults unless the environment asks for Pro.
	cfg := domain.DefaultConfig()
	if os.Getenv("SIKAGUARD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Root context, cancelled on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	velocitySvc := velocity.New(repo, cacheImpl)
	slog.Info("velocity service initialized")

	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Supplemental rules live in the database only; POST /rules adds them.
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	recorder := risk.NewRecorder(repo, busImpl)
	analyzer := risk.NewAnalyzer(
		velocitySvc.Profile,
		velocitySvc.Counts,
		velocitySvc.Blacklisted,
		engine,
		recorder,
	)
	slog.Info("analyzer initialized", "engine_version", risk.EngineVersion)

	// The async worker consumes sms.received off the bus. Pro tier
	// runs it by default; Community can opt in.
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SIKAGUARD_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, analyzer)

		var tenantIDs []string
		if envTenants := os.Getenv("SIKAGUARD_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
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

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, analyzer, engine, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("sikaguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	// Drain the worker before the HTTP server so in-flight analyses land.
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

	slog.Info("sikaguard shutdown complete")
}

// GlobalTenantID scopes rules that apply to every tenant.
const GlobalTenantID = "*"

// loadRulesFromDatabase seeds the engine from persisted rule configs.
// An unreadable rules table is not fatal; the engine starts empty.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║              🛡  SIKAGUARD                 ║")
	fmt.Println("  ║     Mobile Money Fraud Detection          ║")
	fmt.Println("  ║      Every cedi, accounted for.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /analyze                  - Analyze an SMS message")
	fmt.Println("    GET  /analyses/{id}            - Get analysis by ID")
	fmt.Println("    GET  /transactions/{id}        - Get transaction by ID")
	fmt.Println("    GET  /transactions/{id}/audit  - Get per-layer audit trail")
	fmt.Println("    GET  /alerts?userId=           - List alerts for a user")
	fmt.Println("    GET  /blacklist                - List blacklist entries")
	fmt.Println("    POST /blacklist                - Blacklist a counterpart")
	fmt.Println("    DELETE /blacklist/{id}         - Remove a blacklist entry")
	fmt.Println("    GET  /rules                    - List supplemental rules")
	fmt.Println("    POST /rules                    - Create a supplemental rule")
	fmt.Println("    POST /rules/reload             - Hot-reload rules from database")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}

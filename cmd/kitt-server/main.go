// kitt-server is the orchestrator: it exposes the HTTP API, dispatches
// commands to agents, and drives campaigns to completion.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/kitt/pkg/api"
	"github.com/codeready-toolchain/kitt/pkg/database"
	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/eventbus"
	"github.com/codeready-toolchain/kitt/pkg/executor"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/metrics"
	"github.com/codeready-toolchain/kitt/pkg/registry"
	"github.com/codeready-toolchain/kitt/pkg/retention"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	adminToken := os.Getenv("KITT_ADMIN_TOKEN")
	if adminToken == "" {
		log.Fatal("KITT_ADMIN_TOKEN is required")
	}
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL database")

	store := ledger.NewStore(dbClient.DB())
	agents := registry.NewStore(dbClient.DB())
	dispatchQ := dispatch.New()
	bus := eventbus.New()
	execMgr := executor.New(store, dispatchQ, bus)
	m := metrics.New()

	server := api.NewServer(store, agents, dispatchQ, bus, execMgr, adminToken)
	server.SetMetrics(m)
	if err := server.ValidateWiring(); err != nil {
		log.Fatalf("server wiring incomplete: %v", err)
	}

	sweeper := registry.NewLivenessSweeper(agents, 10*time.Second, api.DefaultLivenessWindow)
	go sweeper.Run(ctx)

	retentionSweeper := retention.New(store)
	if err := retentionSweeper.Start(ctx); err != nil {
		log.Fatalf("failed to start retention sweeper: %v", err)
	}
	defer retentionSweeper.Stop()

	resumeOpenCampaigns(ctx, store, execMgr)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsAddr := getEnv("METRICS_ADDR", ":9090")
	go func() {
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		execMgr.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	log.Printf("HTTP server listening on :%s", httpPort)
	if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
	log.Println("kitt-server stopped")
}

// resumeOpenCampaigns rehydrates Campaign Executors for every campaign left
// in "running" status by a prior process, per the crash-recovery
// requirement: in-flight campaigns are not abandoned on restart.
func resumeOpenCampaigns(ctx context.Context, store *ledger.Store, execMgr *executor.Manager) {
	campaigns, err := store.LoadOpenCampaigns(ctx)
	if err != nil {
		slog.Error("failed to load open campaigns for recovery", "error", err)
		return
	}
	for _, c := range campaigns {
		slog.Info("resuming open campaign", "campaign_id", c.ID)
		execMgr.Start(ctx, c.ID)
	}
}

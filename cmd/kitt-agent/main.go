// kitt-agent is the agent-side process: it heartbeats to a KITT server,
// executes whatever command the heartbeat hands back, and reports results.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/kitt/pkg/agentloop"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	envFile := flag.String("env-file", getEnv("KITT_AGENT_ENV_FILE", ""), "optional .env file to load")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("warning: could not load %s: %v", *envFile, err)
		}
	}

	serverURL := getEnv("KITT_SERVER_URL", "http://localhost:8080")
	agentName := os.Getenv("KITT_AGENT_NAME")
	agentID := os.Getenv("KITT_AGENT_ID")
	token := os.Getenv("KITT_AGENT_TOKEN")
	if agentName == "" || agentID == "" || token == "" {
		log.Fatal("KITT_AGENT_NAME, KITT_AGENT_ID, and KITT_AGENT_TOKEN are required")
	}

	client := agentloop.NewClient(serverURL, agentName, token)
	runner := agentloop.NewRunner(client, agentID, agentloop.NormalizeArch(hostArch()), agentloop.GPUSummary{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("kitt-agent starting", "server", serverURL, "agent_name", agentName)
	runner.Run(ctx)
	slog.Info("kitt-agent stopped")
}

func hostArch() string {
	return os.Getenv("KITT_AGENT_ARCH_OVERRIDE")
}

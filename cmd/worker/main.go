// Package main is the entry point for the jobcore worker process: the
// per-role binary internal/cluster.Service spawns for a slicer or worker
// node. Its identity comes entirely from environment variables the
// cluster service sets on Start, not from flags.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/config"
	"jobcore/internal/eventbus"
	"jobcore/internal/observability"
	"jobcore/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("JOBCORE_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agentCfg, err := agentConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid agent environment: %v", err)
	}

	shutdownTracer, err := observability.Init(ctx, "jobcore-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	natsURL := cfg.NATSURL
	if v := os.Getenv("JOBCORE_NATS_URL"); v != "" {
		natsURL = v
	}
	bus, err := eventbus.Connect(natsURL)
	if err != nil {
		log.Fatalf("failed to join event bus at %s: %v", natsURL, err)
	}
	defer bus.Close()

	agent := worker.New(bus, agentCfg)

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("failed to shutdown metrics: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Println("worker metrics listening on :6162")
		if err := http.ListenAndServe(":6162", mux); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	done := make(chan error, 1)
	log.Printf("worker starting: role=%s node=%s execution=%s", agentCfg.Role, agentCfg.NodeID, agentCfg.ExecutionID)
	go func() { done <- agent.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("shutting down worker...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && err != context.Canceled {
			log.Printf("agent exited: %v", err)
		}
	}
}

// agentConfigFromEnv reads the JOBCORE_EXECUTION_ID / JOBCORE_NODE_ID /
// JOBCORE_ROLE / JOBCORE_RECOVER variables internal/cluster.Service sets
// when it spawns this process, falling back to os.Args[1] for the role
// so the binary is runnable by hand during development.
func agentConfigFromEnv() (worker.AgentConfig, error) {
	role := worker.Role(os.Getenv("JOBCORE_ROLE"))
	if role == "" && len(os.Args) > 1 {
		role = worker.Role(os.Args[1])
	}

	exID, err := uuid.Parse(os.Getenv("JOBCORE_EXECUTION_ID"))
	if err != nil {
		return worker.AgentConfig{}, err
	}

	recover, _ := strconv.ParseBool(os.Getenv("JOBCORE_RECOVER"))

	return worker.AgentConfig{
		ExecutionID: exID,
		NodeID:      os.Getenv("JOBCORE_NODE_ID"),
		Role:        role,
		Recover:     recover,
		UpdateEvery: 5 * time.Second,
	}, nil
}

// Package main is the entry point for the jobcore controller.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"jobcore/internal/assets"
	"jobcore/internal/auth"
	"jobcore/internal/bootstrap"
	"jobcore/internal/cluster"
	"jobcore/internal/config"
	"jobcore/internal/controller"
	"jobcore/internal/controller/handlers"
	"jobcore/internal/eventbus"
	"jobcore/internal/logger"
	"jobcore/internal/moderator"
	"jobcore/internal/observability"
	"jobcore/internal/status"
	"jobcore/internal/store"
	"jobcore/internal/store/postgres"
	"jobcore/internal/worker/runtime"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file")
	apiKey := flag.String("api-key", os.Getenv("JOBCORE_API_KEY"), "Shared API key required of callers; empty disables auth")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	structuredLog := logger.New()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if *migrateFlag {
		log.Println("running database migrations...")
		if err := postgres.Migrate(db.DB()); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations complete")
	}

	shutdownTracer, err := observability.Init(ctx, "jobcore-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("failed to shutdown metrics: %v", err)
		}
	}()

	meter := otel.Meter("jobcore-controller")
	pendingQuery := store.ExecutionQuery().WithStatus(status.Pending)
	_, err = meter.Int64ObservableGauge("jobcore.queue.depth",
		metric.WithDescription("Number of executions currently pending admission"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			pending, err := db.SearchExecutions(ctx, pendingQuery, 0, store.MaxSearchSize, store.CreatedAsc)
			if err != nil {
				log.Printf("failed to measure queue depth: %v", err)
				return nil
			}
			obs.Observe(int64(len(pending)))
			return nil
		}),
	)
	if err != nil {
		log.Printf("failed to register queue depth metric: %v", err)
	}

	bus, err := eventbus.New()
	if err != nil {
		log.Fatalf("failed to start event bus: %v", err)
	}

	rt, err := selectRuntime(cfg)
	if err != nil {
		log.Fatalf("failed to init worker runtime: %v", err)
	}

	clusterSvc := cluster.New(rt, bus, cluster.Config{
		WorkerCapacity: cfg.WorkerCapacity,
		SlicerImage:    cfg.SlicerImage,
		WorkerImage:    cfg.WorkerImage,
		ConnRateLimit:  rate.Limit(10),
		ConnBurst:      20,
		KafkaBrokers:   cfg.KafkaBrokers,
	})

	app, err := bootstrap.New(bootstrap.Config{
		Jobs:          db,
		Cluster:       clusterSvc,
		Bus:           bus,
		Moderator:     moderator.New(clusterSvc, cfg.StateStoreConnection),
		Assets:        assets.New(bus),
		Logger:        structuredLog,
		AllocatorTick: cfg.AllocatorTick,
	}, db)
	if err != nil {
		log.Fatalf("failed to wire controller: %v", err)
	}

	if err := app.Start(ctx); err != nil {
		log.Fatalf("failed to start controller: %v", err)
	}

	h := handlers.New(app.Engine, db)
	apiKeyHash := ""
	if *apiKey != "" {
		apiKeyHash = auth.HashKey(*apiKey)
	}
	srv := controller.New(controller.Config{
		Addr:               fmt.Sprintf(":%d", cfg.HTTPPort),
		APIKeyHash:         apiKeyHash,
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		Metrics:            metricsHandler,
		Logger:             structuredLog,
	}, h)

	go func() {
		log.Printf("jobcore controller starting on :%d", cfg.HTTPPort)
		if err := srv.Run(ctx); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down controller...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("controller exited properly")
}

func selectRuntime(cfg *config.Config) (runtime.Runtime, error) {
	switch cfg.Runtime {
	case "docker":
		return runtime.NewDockerRuntime()
	case "kubernetes":
		return runtime.NewKubernetesRuntime(runtime.KubernetesConfig{
			Namespace:          cfg.KubernetesNamespace,
			ServiceAccount:     cfg.KubernetesServiceAccount,
			DefaultCPULimit:    cfg.KubernetesCPULimit,
			DefaultMemoryLimit: cfg.KubernetesMemoryLimit,
		})
	default:
		return runtime.NewExecRuntime(cfg.RuntimeWorkDir), nil
	}
}

// Package config loads jobcore's runtime configuration from an optional
// config file plus environment variable overrides, using
// github.com/spf13/viper so the controller, worker, and cmd/cli flag
// binding all read the same precedence order: explicit env var, then
// config file, then a documented default. Required fields fail loudly
// rather than falling back to a silent zero value.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the controller and worker processes need.
// Not every field applies to every process: WorkerConcurrency and the
// worker-agent poll/backoff/heartbeat settings are unused scaffolding
// left for a future multi-job worker pool; the current worker process
// reads its execution/node/role identity directly from the
// JOBCORE_EXECUTION_ID/JOBCORE_NODE_ID/JOBCORE_ROLE/JOBCORE_RECOVER
// environment variables internal/cluster.Service sets on Start, not
// from this struct.
type Config struct {
	// DatabaseURL is the Postgres connection string backing
	// internal/store/postgres. Required.
	DatabaseURL string

	// HTTPPort is the controller's public HTTP listen port.
	HTTPPort int
	// ControllerURL is the base URL workers use to reach the controller.
	ControllerURL string

	WorkerConcurrency       int
	WorkerPollInterval      time.Duration
	WorkerMaxBackoff        time.Duration
	WorkerHeartbeatInterval time.Duration
	HeartVisibilityExtension time.Duration

	// Runtime selects the container backend internal/cluster.Service
	// launches slicer/worker processes on: "docker", "kubernetes", or
	// "exec".
	Runtime        string
	RuntimeWorkDir string

	OTELEndpoint string

	// NATSURL is where cmd/worker connects to join the controller's
	// embedded event bus (internal/eventbus.Connect). The controller
	// itself always embeds its own server (internal/eventbus.New) and
	// ignores this field.
	NATSURL string

	ClusterName          string
	StateStoreConnection string
	AllocatorTick        time.Duration
	AdmissionThreshold   int

	WorkerCapacity int
	SlicerImage    string
	WorkerImage    string
	KafkaBrokers   []string

	KubernetesNamespace      string
	KubernetesServiceAccount string
	KubernetesCPULimit       string
	KubernetesMemoryLimit    string
}

// Load reads configPath (if non-empty) as a viper config file, then
// applies environment variable overrides and documented defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 6161)
	v.SetDefault("controller_url", "http://localhost:6161")
	v.SetDefault("worker_concurrency", 1)
	v.SetDefault("worker_poll_interval", time.Second)
	v.SetDefault("worker_max_backoff", 30*time.Second)
	v.SetDefault("worker_heartbeat_interval", 2*time.Minute)
	v.SetDefault("heart_visibility_extension", 5*time.Minute)
	v.SetDefault("runtime", "docker")
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("cluster_name", "jobcore")
	v.SetDefault("allocator_tick", time.Second)
	v.SetDefault("admission_threshold", 2)
	v.SetDefault("worker_capacity", 16)

	bindings := map[string]string{
		"database_url":               "DATABASE_URL",
		"http_port":                  "PORT",
		"controller_url":             "CONTROLLER_URL",
		"worker_concurrency":         "WORKER_CONCURRENCY",
		"worker_poll_interval":       "WORKER_POLL_INTERVAL",
		"worker_max_backoff":         "WORKER_MAX_BACKOFF",
		"worker_heartbeat_interval":  "WORKER_HEARTBEAT_INTERVAL",
		"heart_visibility_extension": "WORKER_VISIBILITY_EXTENSION",
		"runtime":                    "RUNTIME",
		"runtime_workdir":            "RUNTIME_WORKDIR",
		"otel_endpoint":              "OTEL_EXPORTER_OTLP_ENDPOINT",
		"nats_url":                   "JOBCORE_NATS_URL",
		"cluster_name":               "JOBCORE_CLUSTER_NAME",
		"state_store_connection":     "JOBCORE_STATE_STORE_CONNECTION",
		"allocator_tick":             "JOBCORE_ALLOCATOR_TICK",
		"admission_threshold":        "JOBCORE_ADMISSION_THRESHOLD",
		"worker_capacity":            "JOBCORE_WORKER_CAPACITY",
		"slicer_image":               "JOBCORE_SLICER_IMAGE",
		"worker_image":               "JOBCORE_WORKER_IMAGE",
		"kafka_brokers":              "JOBCORE_KAFKA_BROKERS",
		"kubernetes_namespace":       "KUBERNETES_NAMESPACE",
		"kubernetes_service_account": "KUBERNETES_SERVICE_ACCOUNT",
		"kubernetes_cpu_limit":       "KUBERNETES_CPU_LIMIT",
		"kubernetes_memory_limit":    "KUBERNETES_MEMORY_LIMIT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}

	dbURL := v.GetString("database_url")
	if dbURL == "" {
		return nil, fmt.Errorf("database_url is required (env: DATABASE_URL)")
	}

	runtime := v.GetString("runtime")
	switch runtime {
	case "docker", "exec", "kubernetes":
	default:
		return nil, fmt.Errorf("invalid runtime %q: must be one of docker, exec, kubernetes", runtime)
	}

	var kafkaBrokers []string
	if raw := v.GetString("kafka_brokers"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				kafkaBrokers = append(kafkaBrokers, b)
			}
		}
	}

	return &Config{
		DatabaseURL:              dbURL,
		HTTPPort:                 v.GetInt("http_port"),
		ControllerURL:            v.GetString("controller_url"),
		WorkerConcurrency:        v.GetInt("worker_concurrency"),
		WorkerPollInterval:       v.GetDuration("worker_poll_interval"),
		WorkerMaxBackoff:         v.GetDuration("worker_max_backoff"),
		WorkerHeartbeatInterval:  v.GetDuration("worker_heartbeat_interval"),
		HeartVisibilityExtension: v.GetDuration("heart_visibility_extension"),
		Runtime:                  runtime,
		RuntimeWorkDir:           v.GetString("runtime_workdir"),
		OTELEndpoint:             v.GetString("otel_endpoint"),
		NATSURL:                  v.GetString("nats_url"),
		ClusterName:              v.GetString("cluster_name"),
		StateStoreConnection:     v.GetString("state_store_connection"),
		AllocatorTick:            v.GetDuration("allocator_tick"),
		AdmissionThreshold:       v.GetInt("admission_threshold"),
		WorkerCapacity:           v.GetInt("worker_capacity"),
		SlicerImage:              v.GetString("slicer_image"),
		WorkerImage:              v.GetString("worker_image"),
		KafkaBrokers:             kafkaBrokers,
		KubernetesNamespace:      v.GetString("kubernetes_namespace"),
		KubernetesServiceAccount: v.GetString("kubernetes_service_account"),
		KubernetesCPULimit:       v.GetString("kubernetes_cpu_limit"),
		KubernetesMemoryLimit:    v.GetString("kubernetes_memory_limit"),
	}, nil
}

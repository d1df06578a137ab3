package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPPort        string
	Env             string
	StoreDriver     string
	DatabaseURL     string
	MongoURI        string
	MongoDatabase   string
	FrontendURL     string
	WasmDir         string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

func New() Config {
	return Config{
		HTTPPort:        "5000",
		Env:             "development",
		StoreDriver:     DriverPostgres,
		DatabaseURL:     "postgres://localhost:5432/task_manager",
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "task-manager",
		FrontendURL:     "http://localhost:3000",
		WasmDir:         "web",
		ShutdownTimeout: time.Second * 10,
		MaxBodyBytes:    10 << 20,
	}
}

// Load returns New() overridden by environment variables.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := New()

	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.HTTPPort)
	str("APP_ENV", &cfg.Env)
	str("STORE_DRIVER", &cfg.StoreDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("MONGODB_URI", &cfg.MongoURI)
	str("MONGODB_DATABASE", &cfg.MongoDatabase)
	str("FRONTEND_URL", &cfg.FrontendURL)
	str("WASM_DIR", &cfg.WasmDir)

	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v := getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("parse MAX_BODY_BYTES: invalid value %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, mongo or memory)", cfg.StoreDriver)
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.HTTPPort
}

// Development reports whether request logging should be enabled.
func (c Config) Development() bool {
	return c.Env == "development"
}

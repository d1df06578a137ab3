package config

import (
	"testing"
	"time"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != New() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Addr() != ":5000" || !cfg.Development() {
		t.Fatalf("addr=%q dev=%v", cfg.Addr(), cfg.Development())
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"PORT":             "8080",
		"APP_ENV":          "production",
		"STORE_DRIVER":     "mongo",
		"MONGODB_URI":      "mongodb://db:27017",
		"MONGODB_DATABASE": "tasks",
		"SHUTDOWN_TIMEOUT": "3s",
		"MAX_BODY_BYTES":   "1024",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != ":8080" || cfg.Development() {
		t.Fatalf("addr=%q dev=%v", cfg.Addr(), cfg.Development())
	}
	if cfg.StoreDriver != DriverMongo || cfg.MongoURI != "mongodb://db:27017" || cfg.MongoDatabase != "tasks" {
		t.Fatalf("mongo settings = %+v", cfg)
	}
	if cfg.ShutdownTimeout != 3*time.Second || cfg.MaxBodyBytes != 1024 {
		t.Fatalf("timeout=%v body=%d", cfg.ShutdownTimeout, cfg.MaxBodyBytes)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []map[string]string{
		{"STORE_DRIVER": "sqlite"},
		{"SHUTDOWN_TIMEOUT": "soon"},
		{"MAX_BODY_BYTES": "-1"},
		{"MAX_BODY_BYTES": "big"},
	}
	for _, vals := range cases {
		if _, err := load(env(vals)); err == nil {
			t.Fatalf("load(%v) succeeded, want error", vals)
		}
	}
}

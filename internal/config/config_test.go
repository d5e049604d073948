// Copyright 2025 James Ross
package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("PIPELINE_THREADS")
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Pipeline.Threads != 5 {
		t.Fatalf("expected default thread count 5, got %d", cfg.Pipeline.Threads)
	}
	if cfg.API.BaseURL == "" {
		t.Fatalf("expected default api base url")
	}
	if cfg.Ledger.MaxRows != 100000 {
		t.Fatalf("expected default ledger max rows 100000, got %d", cfg.Ledger.MaxRows)
	}
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Pipeline.Threads = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for pipeline.threads < 1")
	}

	cfg = defaultConfig()
	cfg.Pipeline.DrainTimeout = 1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for drain_timeout < 10s")
	}

	cfg = defaultConfig()
	cfg.API.MaxAttempts = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for api.max_attempts < 1")
	}

	cfg = defaultConfig()
	cfg.Archive.Enabled = true
	cfg.Archive.S3Bucket = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for archive enabled without bucket")
	}

	cfg = defaultConfig()
	cfg.Observability.MetricsPort = 70000
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for out-of-range metrics port")
	}
}

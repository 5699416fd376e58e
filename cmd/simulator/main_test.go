package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRunConfigDefaults(t *testing.T) {
	cfg, err := loadRunConfig("")
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Dt != 60 || cfg.Steps != 10 || cfg.Mode != "accelerated" {
		t.Fatalf("defaults = %+v, want dt=60 steps=10 mode=accelerated", cfg)
	}
}

func TestLoadRunConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	doc := "scenario: custom.json\ndt: 30\nsteps: 0\nmode: paced\ninterval: 250ms\nmetrics_addr: \":9191\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadRunConfig(path)
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.Scenario != "custom.json" {
		t.Fatalf("Scenario = %q, want custom.json", cfg.Scenario)
	}
	if cfg.Dt != 30 || cfg.Steps != 0 || cfg.Mode != "paced" {
		t.Fatalf("cfg = %+v, want dt=30 steps=0 mode=paced", cfg)
	}
	if cfg.Interval != "250ms" || cfg.MetricsAddr != ":9191" {
		t.Fatalf("cfg = %+v, want interval=250ms metrics_addr=:9191", cfg)
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	if _, err := loadRunConfig("/nonexistent/run.yaml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRunConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadRunConfig(path); err == nil {
		t.Fatalf("expected error for malformed config")
	}
}

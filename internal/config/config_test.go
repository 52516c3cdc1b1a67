package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	h := cfg.Heuristics
	if h.FallbackCO2PerKm != 0.65 || h.LookbackDays != 30 || h.UnderstockDays != 7 || h.ReorderBuffer != 5 {
		t.Fatalf("unexpected defaults: %+v", h)
	}
	if cfg.Source.Kind != "csv" {
		t.Fatalf("default source: %s", cfg.Source.Kind)
	}
}

func TestYAMLOverlayAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	body := []byte("cacheTtl: 30s\nheuristics:\n  lookbackDays: 14\n  surplusFactor: 3\n  objectives:\n    fast: [0.2, 0.8, 0]\n")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/tmp/extracts")
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Heuristics.LookbackDays != 14 || cfg.Heuristics.SurplusFactor != 3 {
		t.Fatalf("yaml not applied: %+v", cfg.Heuristics)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Fatalf("cacheTtl: %v", cfg.CacheTTL)
	}
	if _, ok := cfg.Heuristics.Objectives["balanced"]; !ok {
		t.Fatalf("default objectives dropped")
	}
	if w := cfg.Heuristics.Objectives["fast"]; w[1] != 0.8 {
		t.Fatalf("custom objective: %v", w)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.Source.Dir != "/tmp/extracts" {
		t.Fatalf("env not applied: %s %s", cfg.HTTP.Addr, cfg.Source.Dir)
	}
}

func TestValidateRejectsZeroLookback(t *testing.T) {
	cfg := Default()
	cfg.Heuristics.LookbackDays = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestPostgresRequiresURL(t *testing.T) {
	cfg := Default()
	cfg.Source.Kind = "postgres"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/ct")
	cfg2, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg2.Source.Kind != "postgres" {
		t.Fatalf("DATABASE_URL should select postgres, got %s", cfg2.Source.Kind)
	}
}

func TestValidateRejectsNonFiniteHeuristics(t *testing.T) {
	for name, set := range map[string]func(c *Config){
		"understockNaN": func(c *Config) { c.Heuristics.UnderstockDays = math.NaN() },
		"understockInf": func(c *Config) { c.Heuristics.UnderstockDays = math.Inf(1) },
		"surplusNaN":    func(c *Config) { c.Heuristics.SurplusFactor = math.NaN() },
		"surplusInf":    func(c *Config) { c.Heuristics.SurplusFactor = math.Inf(1) },
		"fallbackNaN":   func(c *Config) { c.Heuristics.FallbackCO2PerKm = math.NaN() },
		"neutralNaN":    func(c *Config) { c.Heuristics.NeutralScore = math.NaN() },
		"reorderBufInf": func(c *Config) { c.Heuristics.ReorderBuffer = math.Inf(1) },
	} {
		cfg := Default()
		set(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: want ErrInvalid, got %v", name, err)
		}
	}
}

func TestYAMLNaNRejected(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("heuristics:\n  understockDays: .nan\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

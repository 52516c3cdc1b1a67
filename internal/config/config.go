// Package config loads service configuration: defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"controltower/internal/model"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Env        string           `yaml:"env"`
	LogMode    string           `yaml:"logMode"`
	HTTP       HTTPConfig       `yaml:"http"`
	Source     SourceConfig     `yaml:"source"`
	RedisURL   string           `yaml:"redisUrl"`
	CacheTTL   time.Duration    `yaml:"cacheTtl"`
	CacheSize  int              `yaml:"cacheSize"`
	RateRPS    float64          `yaml:"rateRps"`
	RateBurst  int              `yaml:"rateBurst"`
	Heuristics model.Heuristics `yaml:"heuristics"`
}

type HTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// SourceConfig selects where the seven tables are read from.
type SourceConfig struct {
	Kind        string `yaml:"kind"` // csv | postgres
	Dir         string `yaml:"dir"`
	DatabaseURL string `yaml:"databaseUrl"`
}

func Default() *Config {
	return &Config{
		Env:     "development",
		LogMode: "dev",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Source:     SourceConfig{Kind: "csv", Dir: "data"},
		CacheTTL:   5 * time.Minute,
		CacheSize:  256,
		RateRPS:    20,
		RateBurst:  40,
		Heuristics: model.DefaultHeuristics(),
	}
}

// Load reads CONFIG_PATH (or ./config.yaml when present) and applies env overrides.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file; an empty path skips the file step.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Addr = ":" + v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Source.Dir = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.Source.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Source.DatabaseURL = v
		if os.Getenv("DATA_SOURCE") == "" {
			cfg.Source.Kind = "postgres"
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	cfg.RateRPS = envFloat("RATE_RPS", cfg.RateRPS)
	cfg.RateBurst = envInt("RATE_BURST", cfg.RateBurst)
}

// Validate rejects heuristics that would make the scorer or rebalancer divide by zero.
func (c *Config) Validate() error {
	h := c.Heuristics
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case h.LookbackDays <= 0:
		return fmt.Errorf("%w: lookbackDays must be > 0", ErrInvalid)
	case !finite(h.UnderstockDays) || h.UnderstockDays <= 0:
		return fmt.Errorf("%w: understockDays must be a finite number > 0", ErrInvalid)
	case !finite(h.SurplusFactor) || h.SurplusFactor < 1:
		return fmt.Errorf("%w: surplusFactor must be a finite number >= 1", ErrInvalid)
	case !finite(h.ReorderBuffer) || h.ReorderBuffer < 0:
		return fmt.Errorf("%w: reorderBuffer must be a finite number >= 0", ErrInvalid)
	case !finite(h.FallbackCO2PerKm) || h.FallbackCO2PerKm < 0:
		return fmt.Errorf("%w: fallbackCo2PerKm must be a finite number >= 0", ErrInvalid)
	case !(h.NeutralScore >= 0 && h.NeutralScore <= 1):
		return fmt.Errorf("%w: neutralScore must be in [0,1]", ErrInvalid)
	case h.DemandBasis != model.DemandByOrders && h.DemandBasis != model.DemandByQuantity:
		return fmt.Errorf("%w: demandBasis must be %q or %q", ErrInvalid, model.DemandByOrders, model.DemandByQuantity)
	}
	switch c.Source.Kind {
	case "csv":
	case "postgres":
		if c.Source.DatabaseURL == "" {
			return fmt.Errorf("%w: postgres source requires databaseUrl", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, c.Source.Kind)
	}
	return nil
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envFloat(name string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

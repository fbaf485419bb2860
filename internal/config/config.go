// Package config loads the zone-server configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the zone-server binary needs to start.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	ScenarioPath string

	GeocodeBaseURL  string
	GeocodeTimeout  time.Duration
	GeocodeCacheTTL time.Duration

	// RedisAddr enables the geocode cache when non-empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; missing files are fine.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        envOr("ZONE_HTTP_ADDR", ":8080"),
		MetricsAddr:     envOr("ZONE_METRICS_ADDR", ":9090"),
		ScenarioPath:    os.Getenv("ZONE_SCENARIO_PATH"),
		GeocodeBaseURL:  envOr("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout:  5 * time.Second,
		GeocodeCacheTTL: time.Hour,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
	}

	if raw := os.Getenv("GEOCODE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid GEOCODE_TIMEOUT %q: %w", raw, err)
		}
		cfg.GeocodeTimeout = d
	}
	if raw := os.Getenv("GEOCODE_CACHE_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid GEOCODE_CACHE_TTL %q: %w", raw, err)
		}
		cfg.GeocodeCacheTTL = d
	}
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", raw, err)
		}
		cfg.RedisDB = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP listen address is required")
	}
	if c.GeocodeBaseURL == "" {
		return fmt.Errorf("geocode base URL is required")
	}
	if c.GeocodeTimeout <= 0 {
		return fmt.Errorf("geocode timeout must be positive")
	}
	if c.GeocodeCacheTTL <= 0 {
		return fmt.Errorf("geocode cache TTL must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

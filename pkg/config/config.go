// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level configuration tree for a solver process.
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Cache   CacheConfig   `koanf:"cache"`
	Solver  SolverConfig  `koanf:"solver"`
	Retry   RetryConfig   `koanf:"retry"`
}

// AppConfig carries process-wide identification settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig controls the logger (pkg/logger).
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // rotated file count
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig controls the Prometheus metrics container (pkg/metrics).
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// CacheConfig controls the solve-result cache (pkg/cache).
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // in-memory backend only
}

// Address returns the cache backend's host:port.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SolverConfig carries the default algorithm-selector parameters used when
// a caller does not supply its own SolverOptions.
type SolverConfig struct {
	DefaultAlgorithm string `koanf:"default_algorithm"` // greedy, grasp, multistart, gvns

	// GRASP
	Alpha   float64 `koanf:"alpha"`    // RCL threshold in [0,1], 0 = pure greedy
	RCLSize int     `koanf:"rcl_size"` // restricted candidate list size, 0 = unbounded

	// Multi-Start
	Restarts int `koanf:"restarts"`

	// GVNS
	MaxIterations  int     `koanf:"max_iterations"`
	ShakeStrength  int     `koanf:"shake_strength"`
	NoImproveLimit int     `koanf:"no_improve_limit"`
	EpsilonSeconds float64 `koanf:"epsilon_seconds"`

	// Vehicle speed used to build the distance/time matrices (m/s).
	VehicleSpeedMPS float64 `koanf:"vehicle_speed_mps"`

	Seed int64 `koanf:"seed"`
}

// Epsilon returns the configured feasibility slack as a time.Duration.
func (s SolverConfig) Epsilon() time.Duration {
	return time.Duration(s.EpsilonSeconds * float64(time.Second))
}

// RetryConfig controls retry/backoff for cache and other transient
// operations.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	validAlgorithms := map[string]bool{"greedy": true, "grasp": true, "multistart": true, "gvns": true}
	if c.Solver.DefaultAlgorithm != "" && !validAlgorithms[c.Solver.DefaultAlgorithm] {
		errs = append(errs, fmt.Sprintf("solver.default_algorithm must be one of: greedy, grasp, multistart, gvns, got %s", c.Solver.DefaultAlgorithm))
	}

	if c.Solver.Alpha < 0 || c.Solver.Alpha > 1 {
		errs = append(errs, fmt.Sprintf("solver.alpha must be in [0,1], got %f", c.Solver.Alpha))
	}

	if c.Solver.VehicleSpeedMPS < 0 {
		errs = append(errs, "solver.vehicle_speed_mps must be non-negative")
	}

	if c.Solver.EpsilonSeconds < 0 {
		errs = append(errs, "solver.epsilon_seconds must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the process is running in a development
// environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the process is running in a production
// environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}

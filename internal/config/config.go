// Package config handles configuration loading and management for Kestrel.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Kestrel.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Bus          BusConfig          `mapstructure:"bus"`
	Routing      RoutingConfig      `mapstructure:"routing"`
	Storage      StorageConfig      `mapstructure:"storage"`
}

// OrchestratorConfig holds task execution settings.
type OrchestratorConfig struct {
	// TaskTimeout is the overall per-task deadline.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// MaxHops caps the sequential handoff chain length.
	MaxHops int `mapstructure:"max_hops"`
	// ParallelTaskTypes lists task types executed as a parallel fan-out.
	ParallelTaskTypes []string `mapstructure:"parallel_task_types"`
	// DefaultSequences maps task types to their static worker sequence,
	// used when routing memory has no opinion.
	DefaultSequences map[string][]string `mapstructure:"default_sequences"`
	// FallbackSequence is used for task types with no default sequence.
	FallbackSequence []string `mapstructure:"fallback_sequence"`
}

// BusConfig holds message bus settings.
type BusConfig struct {
	// QueueCapacity is the per-worker queue capacity.
	QueueCapacity int `mapstructure:"queue_capacity"`
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RoutingConfig holds routing memory tuning.
type RoutingConfig struct {
	// Weights are the pattern scoring weights.
	Weights WeightsConfig `mapstructure:"weights"`
	// MaxPatterns bounds the per-task-type pattern history.
	MaxPatterns int `mapstructure:"max_patterns"`
	// MinSamples is the minimum transition sample size for recommendations.
	MinSamples int `mapstructure:"min_samples"`
	// MinSuccessRate is the recommendation success-rate threshold.
	MinSuccessRate float64 `mapstructure:"min_success_rate"`
	// RecencyWindow is the span over which pattern recency decays to zero.
	RecencyWindow time.Duration `mapstructure:"recency_window"`
}

// WeightsConfig holds the three pattern scoring weights.
// They should sum to 1.
type WeightsConfig struct {
	Recency    float64 `mapstructure:"recency"`
	Success    float64 `mapstructure:"success"`
	Similarity float64 `mapstructure:"similarity"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Path is the routing memory database path. Empty means the default
	// XDG data path.
	Path string `mapstructure:"path"`
	// FlushInterval is how often routing memory is persisted.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (KESTREL_*)
// 2. Project config (.kestrel.yaml in current directory or parent)
// 3. User config (~/.config/kestrel/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("KESTREL")
	v.AutomaticEnv()
	v.BindEnv("storage.path", "KESTREL_MEMORY_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("orchestrator.task_timeout", cfg.Orchestrator.TaskTimeout.String())
	v.Set("orchestrator.max_hops", cfg.Orchestrator.MaxHops)
	v.Set("orchestrator.parallel_task_types", cfg.Orchestrator.ParallelTaskTypes)
	v.Set("orchestrator.default_sequences", cfg.Orchestrator.DefaultSequences)
	v.Set("orchestrator.fallback_sequence", cfg.Orchestrator.FallbackSequence)
	v.Set("bus.queue_capacity", cfg.Bus.QueueCapacity)
	v.Set("bus.sweep_interval", cfg.Bus.SweepInterval.String())
	v.Set("routing.weights.recency", cfg.Routing.Weights.Recency)
	v.Set("routing.weights.success", cfg.Routing.Weights.Success)
	v.Set("routing.weights.similarity", cfg.Routing.Weights.Similarity)
	v.Set("routing.max_patterns", cfg.Routing.MaxPatterns)
	v.Set("routing.min_samples", cfg.Routing.MinSamples)
	v.Set("routing.min_success_rate", cfg.Routing.MinSuccessRate)
	v.Set("routing.recency_window", cfg.Routing.RecencyWindow.String())
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("storage.flush_interval", cfg.Storage.FlushInterval.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	w := c.Routing.Weights
	sum := w.Recency + w.Success + w.Similarity
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("routing weights must sum to 1, got %.3f", sum)
	}
	if w.Recency < 0 || w.Success < 0 || w.Similarity < 0 {
		return fmt.Errorf("routing weights must be non-negative")
	}
	if c.Orchestrator.MaxHops <= 0 {
		return fmt.Errorf("orchestrator.max_hops must be positive, got %d", c.Orchestrator.MaxHops)
	}
	if c.Orchestrator.TaskTimeout <= 0 {
		return fmt.Errorf("orchestrator.task_timeout must be positive, got %v", c.Orchestrator.TaskTimeout)
	}
	if c.Bus.QueueCapacity <= 0 {
		return fmt.Errorf("bus.queue_capacity must be positive, got %d", c.Bus.QueueCapacity)
	}
	if c.Routing.MinSuccessRate < 0 || c.Routing.MinSuccessRate > 1 {
		return fmt.Errorf("routing.min_success_rate must be in [0,1], got %v", c.Routing.MinSuccessRate)
	}
	return nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Orchestrator defaults
	v.SetDefault("orchestrator.task_timeout", "600s")
	v.SetDefault("orchestrator.max_hops", 15)
	v.SetDefault("orchestrator.parallel_task_types", []string{"multi_domain_analysis", "comparison", "survey"})
	v.SetDefault("orchestrator.fallback_sequence", []string{"loopback"})

	// Bus defaults
	v.SetDefault("bus.queue_capacity", 100)
	v.SetDefault("bus.sweep_interval", "30s")

	// Routing defaults
	v.SetDefault("routing.weights.recency", 0.3)
	v.SetDefault("routing.weights.success", 0.5)
	v.SetDefault("routing.weights.similarity", 0.2)
	v.SetDefault("routing.max_patterns", 50)
	v.SetDefault("routing.min_samples", 3)
	v.SetDefault("routing.min_success_rate", 0.8)
	v.SetDefault("routing.recency_window", "720h")

	// Storage defaults
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.flush_interval", "60s")
}

// getUserConfigDir returns the XDG config directory for Kestrel.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "kestrel")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "kestrel")
	}
	return filepath.Join(home, ".config", "kestrel")
}

// findProjectConfig searches for .kestrel.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".kestrel.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			TaskTimeout:       600 * time.Second,
			MaxHops:           15,
			ParallelTaskTypes: []string{"multi_domain_analysis", "comparison", "survey"},
			FallbackSequence:  []string{"loopback"},
		},
		Bus: BusConfig{
			QueueCapacity: 100,
			SweepInterval: 30 * time.Second,
		},
		Routing: RoutingConfig{
			Weights: WeightsConfig{
				Recency:    0.3,
				Success:    0.5,
				Similarity: 0.2,
			},
			MaxPatterns:    50,
			MinSamples:     3,
			MinSuccessRate: 0.8,
			RecencyWindow:  720 * time.Hour,
		},
		Storage: StorageConfig{
			FlushInterval: 60 * time.Second,
		},
	}
}

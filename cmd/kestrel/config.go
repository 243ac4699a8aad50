package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Kestrel configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/kestrel/config.yaml
Project-specific overrides can be placed in .kestrel.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("orchestrator.task_timeout: %s\n", cfg.Orchestrator.TaskTimeout)
	fmt.Printf("orchestrator.max_hops: %d\n", cfg.Orchestrator.MaxHops)
	fmt.Printf("orchestrator.parallel_task_types: %s\n", strings.Join(cfg.Orchestrator.ParallelTaskTypes, ", "))
	fmt.Printf("orchestrator.fallback_sequence: %s\n", strings.Join(cfg.Orchestrator.FallbackSequence, " > "))
	fmt.Printf("bus.queue_capacity: %d\n", cfg.Bus.QueueCapacity)
	fmt.Printf("bus.sweep_interval: %s\n", cfg.Bus.SweepInterval)
	fmt.Printf("routing.weights.recency: %g\n", cfg.Routing.Weights.Recency)
	fmt.Printf("routing.weights.success: %g\n", cfg.Routing.Weights.Success)
	fmt.Printf("routing.weights.similarity: %g\n", cfg.Routing.Weights.Similarity)
	fmt.Printf("routing.max_patterns: %d\n", cfg.Routing.MaxPatterns)
	fmt.Printf("routing.min_samples: %d\n", cfg.Routing.MinSamples)
	fmt.Printf("routing.min_success_rate: %g\n", cfg.Routing.MinSuccessRate)
	fmt.Printf("routing.recency_window: %s\n", cfg.Routing.RecencyWindow)
	fmt.Printf("storage.path: %s\n", displayPath(cfg.Storage.Path))
	fmt.Printf("storage.flush_interval: %s\n", cfg.Storage.FlushInterval)
}

func displayPath(p string) string {
	if p == "" {
		return "(default)"
	}
	return p
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "orchestrator.task_timeout":
		fmt.Println(cfg.Orchestrator.TaskTimeout)
	case "orchestrator.max_hops":
		fmt.Println(cfg.Orchestrator.MaxHops)
	case "orchestrator.parallel_task_types":
		fmt.Println(strings.Join(cfg.Orchestrator.ParallelTaskTypes, ", "))
	case "orchestrator.fallback_sequence":
		fmt.Println(strings.Join(cfg.Orchestrator.FallbackSequence, " > "))
	case "bus.queue_capacity":
		fmt.Println(cfg.Bus.QueueCapacity)
	case "bus.sweep_interval":
		fmt.Println(cfg.Bus.SweepInterval)
	case "routing.weights.recency":
		fmt.Println(cfg.Routing.Weights.Recency)
	case "routing.weights.success":
		fmt.Println(cfg.Routing.Weights.Success)
	case "routing.weights.similarity":
		fmt.Println(cfg.Routing.Weights.Similarity)
	case "routing.max_patterns":
		fmt.Println(cfg.Routing.MaxPatterns)
	case "routing.min_samples":
		fmt.Println(cfg.Routing.MinSamples)
	case "routing.min_success_rate":
		fmt.Println(cfg.Routing.MinSuccessRate)
	case "routing.recency_window":
		fmt.Println(cfg.Routing.RecencyWindow)
	case "storage.path":
		fmt.Println(displayPath(cfg.Storage.Path))
	case "storage.flush_interval":
		fmt.Println(cfg.Storage.FlushInterval)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

// setConfigKey updates a configuration value and saves it.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "orchestrator.task_timeout":
		cfg.Orchestrator.TaskTimeout, err = time.ParseDuration(value)
	case "orchestrator.max_hops":
		cfg.Orchestrator.MaxHops, err = strconv.Atoi(value)
	case "bus.queue_capacity":
		cfg.Bus.QueueCapacity, err = strconv.Atoi(value)
	case "bus.sweep_interval":
		cfg.Bus.SweepInterval, err = time.ParseDuration(value)
	case "routing.weights.recency":
		cfg.Routing.Weights.Recency, err = strconv.ParseFloat(value, 64)
	case "routing.weights.success":
		cfg.Routing.Weights.Success, err = strconv.ParseFloat(value, 64)
	case "routing.weights.similarity":
		cfg.Routing.Weights.Similarity, err = strconv.ParseFloat(value, 64)
	case "routing.max_patterns":
		cfg.Routing.MaxPatterns, err = strconv.Atoi(value)
	case "routing.min_samples":
		cfg.Routing.MinSamples, err = strconv.Atoi(value)
	case "routing.min_success_rate":
		cfg.Routing.MinSuccessRate, err = strconv.ParseFloat(value, 64)
	case "routing.recency_window":
		cfg.Routing.RecencyWindow, err = time.ParseDuration(value)
	case "storage.path":
		cfg.Storage.Path = value
	case "storage.flush_interval":
		cfg.Storage.FlushInterval, err = time.ParseDuration(value)
	default:
		fmt.Fprintf(os.Stderr, "Unknown or read-only config key: %s\n", key)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kestrelhq/kestrel/internal/bus"
	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/memory"
	"github.com/kestrelhq/kestrel/internal/orchestrator"
	"github.com/kestrelhq/kestrel/internal/worker"
)

// buildEngine wires a full engine from configuration: built-in workers,
// the message bus, routing memory restored from disk, and the
// orchestrator on top.
func buildEngine(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	registry, err := worker.NewRegistry(worker.Builtins()...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}

	b := bus.New(registry.Names(),
		bus.WithQueueCapacity(cfg.Bus.QueueCapacity),
		bus.WithSweepInterval(cfg.Bus.SweepInterval),
	)

	mem := memory.New(memoryConfig(cfg))

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	// A corrupt store should not brick the engine; start from empty
	// memory and let the next flush rewrite it.
	if err := store.Load(mem); err != nil {
		fmt.Fprintf(os.Stderr, "warning: routing memory unreadable, starting empty: %v\n", err)
		mem = memory.New(memoryConfig(cfg))
	}

	logPath := ""
	if os.Getenv("KESTREL_DEBUG") != "" {
		logPath = debugLogPath()
	}
	logger, err := orchestrator.NewDebugLogger(logPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open debug log: %w", err)
	}

	eng, err := orchestrator.New(orchestrator.RequiredConfig{
		Registry: registry,
		Bus:      b,
		Memory:   mem,
	},
		orchestrator.WithStore(store),
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxHops(cfg.Orchestrator.MaxHops),
		orchestrator.WithTaskTimeout(cfg.Orchestrator.TaskTimeout),
		orchestrator.WithParallelTaskTypes(cfg.Orchestrator.ParallelTaskTypes),
		orchestrator.WithFlushInterval(cfg.Storage.FlushInterval),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return eng, nil
}

// memoryConfig maps the routing section of the config onto memory tuning.
func memoryConfig(cfg *config.Config) memory.Config {
	return memory.Config{
		Weights: memory.Weights{
			Recency:    cfg.Routing.Weights.Recency,
			Success:    cfg.Routing.Weights.Success,
			Similarity: cfg.Routing.Weights.Similarity,
		},
		MaxPatterns:      cfg.Routing.MaxPatterns,
		MinSamples:       cfg.Routing.MinSamples,
		MinSuccessRate:   cfg.Routing.MinSuccessRate,
		RecencyWindow:    cfg.Routing.RecencyWindow,
		DefaultSequences: cfg.Orchestrator.DefaultSequences,
		FallbackSequence: cfg.Orchestrator.FallbackSequence,
	}
}

func openStore(cfg *config.Config) (*memory.Store, error) {
	path := cfg.Storage.Path
	if path == "" {
		path = memory.DefaultStorePath()
	}
	store, err := memory.OpenStore(path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return store, nil
}

func debugLogPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "kestrel", "debug.log")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Orchestrator.TaskTimeout != 600*time.Second {
		t.Errorf("TaskTimeout = %v, want 600s", cfg.Orchestrator.TaskTimeout)
	}
	if cfg.Orchestrator.MaxHops != 15 {
		t.Errorf("MaxHops = %d, want 15", cfg.Orchestrator.MaxHops)
	}
	if cfg.Bus.QueueCapacity != 100 {
		t.Errorf("QueueCapacity = %d, want 100", cfg.Bus.QueueCapacity)
	}
	if cfg.Routing.Weights.Recency != 0.3 || cfg.Routing.Weights.Success != 0.5 || cfg.Routing.Weights.Similarity != 0.2 {
		t.Errorf("Weights = %+v, want 0.3/0.5/0.2", cfg.Routing.Weights)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Routing.Weights = WeightsConfig{Recency: 0.5, Success: 0.5, Similarity: 0.5}

	if err := cfg.Validate(); err == nil {
		t.Error("weights summing to 1.5 should fail validation")
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := Default()
	cfg.Routing.Weights = WeightsConfig{Recency: -0.2, Success: 1.0, Similarity: 0.2}

	if err := cfg.Validate(); err == nil {
		t.Error("negative weight should fail validation")
	}
}

func TestValidate_BadMaxHops(t *testing.T) {
	cfg := Default()
	cfg.Orchestrator.MaxHops = 0

	if err := cfg.Validate(); err == nil {
		t.Error("zero max hops should fail validation")
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
orchestrator:
  task_timeout: 30s
  max_hops: 5
  default_sequences:
    research:
      - search_agent
      - analysis_agent
routing:
  weights:
    recency: 0.2
    success: 0.6
    similarity: 0.2
bus:
  queue_capacity: 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Orchestrator.TaskTimeout != 30*time.Second {
		t.Errorf("TaskTimeout = %v, want 30s", cfg.Orchestrator.TaskTimeout)
	}
	if cfg.Orchestrator.MaxHops != 5 {
		t.Errorf("MaxHops = %d, want 5", cfg.Orchestrator.MaxHops)
	}
	if cfg.Bus.QueueCapacity != 10 {
		t.Errorf("QueueCapacity = %d, want 10", cfg.Bus.QueueCapacity)
	}
	if cfg.Routing.Weights.Success != 0.6 {
		t.Errorf("Weights.Success = %v, want 0.6", cfg.Routing.Weights.Success)
	}

	seq := cfg.Orchestrator.DefaultSequences["research"]
	if len(seq) != 2 || seq[0] != "search_agent" {
		t.Errorf("DefaultSequences[research] = %v", seq)
	}

	// Unset keys keep their defaults.
	if cfg.Routing.MinSamples != 3 {
		t.Errorf("MinSamples = %d, want default 3", cfg.Routing.MinSamples)
	}
}

func TestLoadFromPath_InvalidWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
routing:
  weights:
    recency: 0.9
    success: 0.9
    similarity: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Error("LoadFromPath with bad weights should fail")
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFromPath with missing file should fail")
	}
}

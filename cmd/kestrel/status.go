package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show routing memory and worker state",
	Long: `Display what Kestrel has learned so far.

Shows:
  - Registered workers and their health
  - Pattern history per task type
  - Transition statistics between workers
  - Total routing memory size`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Storage.Path
	if path == "" {
		path = memory.DefaultStorePath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No routing memory yet. Run 'kestrel run <query>' to start.")
		return nil
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	st := eng.Status()

	bold := color.New(color.Bold)
	bold.Println("Workers")
	names := make([]string, 0, len(st.Workers))
	for name := range st.Workers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h := st.Workers[name]
		mark := color.GreenString("✓")
		if !h.Healthy {
			mark = color.RedString("✗")
		}
		fmt.Printf("  %s %-14s queue=%d\n", mark, name, st.QueueDepths[name])
	}

	fmt.Println()
	bold.Println("Routing memory")
	mem := eng.Memory()
	for _, taskType := range mem.TaskTypes() {
		patterns := mem.Patterns(taskType)
		succeeded := 0
		for _, p := range patterns {
			if p.Success {
				succeeded++
			}
		}
		fmt.Printf("  %-24s %d pattern(s), %d successful\n", taskType, len(patterns), succeeded)
	}

	transitions := mem.Transitions()
	if len(transitions) > 0 {
		fmt.Println()
		bold.Println("Transitions")
		for _, tr := range transitions {
			fmt.Printf("  %s > %s: %d/%d (%.0f%%)\n",
				tr.From, tr.To, tr.SuccessCount, tr.TotalCount, tr.SuccessRate()*100)
		}
	}

	fmt.Println()
	fmt.Printf("Total entries: %d\n", st.MemorySize)
	return nil
}

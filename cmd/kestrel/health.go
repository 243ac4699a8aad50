package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/config"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check worker health and message round-trips",
	Long: `Run an end-to-end health check.

Every registered worker must report healthy, and a synthetic message
must complete a full send, receive, and acknowledge round trip over
the bus.`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.HealthCheck(ctx); err != nil {
		fmt.Printf("%s %v\n", color.RedString("✗"), err)
		return fmt.Errorf("health check failed")
	}

	st := eng.Status()
	fmt.Printf("%s %d worker(s) healthy, bus round trip ok\n",
		color.GreenString("✓"), len(st.Workers))
	return nil
}

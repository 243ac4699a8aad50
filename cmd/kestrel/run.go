package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/orchestrator"
)

var (
	runTaskType string
	runTimeout  time.Duration
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a task through the worker chain",
	Long: `Run a task through Kestrel's worker chain.

The query may embed directional syntax to send explicit messages
between workers before routing begins:

  coordinator > search_agent: fetch the latest figures
  coordinator > [search_agent, data_agent] (priority=high): compare Q3 and Q4

Task types listed under orchestrator.parallel_task_types in the config
fan out to multiple workers concurrently; everything else runs as a
sequential handoff chain.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runTaskType, "type", "general", "Task type used for routing decisions")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-task deadline (overrides config)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Stream execution events")
}

func runTask(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runTimeout > 0 {
		cfg.Orchestrator.TaskTimeout = runTimeout
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	eng.Start()
	defer eng.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runVerbose {
		go streamEvents(eng)
	}

	result, err := eng.Execute(ctx, runTaskType, query)
	// A failed chain still carries a fallback answer; show it before
	// exiting non-zero.
	printResult(os.Stdout, result)
	if err != nil {
		return fmt.Errorf("task %s: %w", result.TaskID, err)
	}
	return nil
}

func streamEvents(eng *orchestrator.Orchestrator) {
	dim := color.New(color.Faint)
	for ev := range eng.Events() {
		line := string(ev.Type)
		if ev.Worker != "" {
			line += " " + ev.Worker
		}
		if ev.Err != nil {
			line += ": " + ev.Err.Error()
		}
		dim.Fprintf(os.Stderr, "  %s\n", line)
	}
}

func printResult(w io.Writer, result *orchestrator.ExecutionResult) {
	fmt.Fprintln(w, result.Answer)
	fmt.Fprintln(w)

	var state string
	switch result.State {
	case orchestrator.StateCompleted:
		state = color.GreenString(string(result.State))
	case orchestrator.StateFailed:
		state = color.RedString(string(result.State))
	default:
		state = color.YellowString(string(result.State))
	}
	color.New(color.Faint).Fprintf(w, "%s | %s | %s\n",
		state,
		strings.Join(result.Sequence, " > "),
		result.Duration.Round(time.Millisecond))
}

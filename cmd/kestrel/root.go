package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Multi-agent task orchestration engine",
	Long: `Kestrel routes tasks through chains of cooperating workers,
learns which routes succeed, and relays inter-worker messages over a
prioritized bus.

Core capabilities:
- Sequential handoff chains with learned routing
- Parallel fan-out with synthesis of branch results
- Directional syntax for explicit worker-to-worker messages
- Persistent routing memory that improves over time`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(versionCmd)
}

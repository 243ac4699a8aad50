package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelhq/kestrel/internal/config"
	"github.com/kestrelhq/kestrel/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect, export, or import routing memory",
}

var memoryExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export routing memory as YAML",
	Long: `Export the persisted routing memory as a YAML snapshot.

Writes to stdout unless a file is given. The snapshot can be imported
on another machine to seed its routing memory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, store, err := loadPersistedMemory()
		if err != nil {
			return err
		}
		defer store.Close()

		out := os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return mem.Export(out)
	},
}

var memoryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML routing memory snapshot",
	Long: `Merge a YAML snapshot into the persisted routing memory.

Patterns are appended up to the history bound, transition counts are
merged, and shared entries are added. Existing memory is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mem, store, err := loadPersistedMemory()
		if err != nil {
			return err
		}
		defer store.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()

		if err := mem.Import(f); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		if err := store.Save(mem); err != nil {
			return fmt.Errorf("persist memory: %w", err)
		}
		fmt.Printf("Imported %s, memory now holds %d entries\n", args[0], mem.Size())
		return nil
	},
}

func loadPersistedMemory() (*memory.Memory, *memory.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	mem := memory.New(memoryConfig(cfg))
	if err := store.Load(mem); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load routing memory: %w", err)
	}
	return mem, store, nil
}

func init() {
	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryImportCmd)
}

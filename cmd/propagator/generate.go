package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/propagator"
)

var (
	generateCount  int
	generateSeed   int64
	generateOutput string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic events file",
	Long: `Generate realistic events with random payloads and write them as a JSON
array. The output defaults to the configured events_file_path.

Examples:
  propagator generate --count 50
  propagator generate --count 10 --seed 42 --output ./events.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCount <= 0 {
			return fmt.Errorf("--count must be positive")
		}

		output := generateOutput
		if output == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			output = cfg.Propagator.EventsFilePath
		}

		if err := propagator.WriteEvents(output, propagator.Generate(generateCount, generateSeed)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", generateCount, output)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 20, "number of events to generate")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "random seed (0 picks one)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "output file")
}

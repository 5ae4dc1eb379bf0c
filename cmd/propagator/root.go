package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "propagator",
	Short: "Event Propagator",
	Long: `propagator repeatedly picks a random event from an events file and
POSTs it to the consumer, waiting a fixed interval between sends.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	RunE:         runPropagator,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.json)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Warning != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", cfg.Warning)
	}
	return cfg, nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Event Consumer",
	Long: `consumer accepts events over HTTP, validates them and stores them
in SQLite or PostgreSQL. The full history is available at GET /events.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	RunE:         runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cfg.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", cfg.Warning)
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

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

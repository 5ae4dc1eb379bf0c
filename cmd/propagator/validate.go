package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/event-relay/internal/propagator"
)

var validateCmd = &cobra.Command{
	Use:   "validate [events-file]",
	Short: "Check that every event in a file would be accepted by the consumer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Propagator.EventsFilePath
		}

		events, err := propagator.LoadEvents(path)
		if err != nil {
			return err
		}

		invalid := propagator.ValidateEvents(events)
		out := cmd.OutOrStdout()
		for _, item := range invalid {
			fmt.Fprintf(out, "event %d: %s\n", item.Index, item.Reason)
		}
		if len(invalid) > 0 {
			return fmt.Errorf("%d of %d events are invalid", len(invalid), len(events))
		}

		fmt.Fprintf(out, "All %d events are valid\n", len(events))
		return nil
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			state := "stopped"
			if status.Running {
				state = fmt.Sprintf("running (pid %d)", status.PID)
			}
			filtering := "disabled"
			if status.Enabled {
				filtering = "enabled"
			}
			fmt.Fprintf(out, "Daemon:         %s\n", state)
			fmt.Fprintf(out, "Filtering:      %s\n", filtering)
			fmt.Fprintf(out, "Active source:  %s\n", status.ActiveSource)
			if status.ActiveQuery != "" {
				fmt.Fprintf(out, "Active query:   %s\n", status.ActiveQuery)
			}
			fmt.Fprintf(out, "Total filtered: %d\n", status.TotalFiltered)
			fmt.Fprintf(out, "Cached texts:   %d\n", status.CachedTexts)
			fmt.Fprintf(out, "Database:       %s\n", status.DatabasePath)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Turn filtering on and reprocess the current view",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.setEnabled(cmd.Context(), true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Filtering enabled")
			return nil
		},
	}
}

func newDisableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Turn filtering off and reveal all hidden items",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.setEnabled(cmd.Context(), false); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Filtering disabled, hidden items revealed")
			return nil
		},
	}
}

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess",
		Short: "Re-evaluate every item in the current view",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.reprocess(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reprocessing scheduled")
			return nil
		},
	}
}

func newQueryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "query [text]",
		Short: "Set or clear the active search query",
		Long: "Set the search query applied to the feed view. Run without arguments " +
			"to clear it. A query written in the suppressed language disables " +
			"language filtering for its results; explicit channel blocks still apply.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			if err := client.setQuery(cmd.Context(), query); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if query == "" {
				fmt.Fprintln(out, "Query cleared")
			} else {
				fmt.Fprintf(out, "Query set to %q\n", query)
			}
			return nil
		},
	}
}

func newSourceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "source <url>",
		Short: "Switch the active feed source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.setSource(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active source set to %s\n", args[0])
			return nil
		},
	}
}

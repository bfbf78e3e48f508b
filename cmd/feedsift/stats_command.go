package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show filtering statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"Items filtered (all time)", strconv.FormatInt(stats.TotalFiltered, 10)},
					{"Cached classifications", strconv.FormatInt(stats.CachedTexts, 10)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var hiddenOnly bool

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List items in the current feed view",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			items, err := client.items(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				if hiddenOnly && !item.Hidden {
					continue
				}
				state := ""
				switch {
				case item.Hidden:
					state = "hidden"
				case item.Decided:
					state = "allowed"
				default:
					state = "pending"
				}
				rows = append(rows, []string{item.Title, item.Channel, state})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No items")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Title", "Channel", "State"},
				rows,
				nil,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&hiddenOnly, "hidden", false, "Show only hidden items")
	return cmd
}

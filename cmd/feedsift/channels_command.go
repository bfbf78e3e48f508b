package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	channelsCmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the channel allow and block lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelsList(cmd, ctx)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List channels on either list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelsList(cmd, ctx)
		},
	}

	allowCmd := &cobra.Command{
		Use:   "allow <channel>",
		Short: "Add a channel to the allow list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if err := client.allowChannel(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %q allow-listed\n", name)
			return nil
		},
	}

	blockCmd := &cobra.Command{
		Use:   "block <channel>",
		Short: "Add a channel to the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if err := client.blockChannel(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %q block-listed\n", name)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <channel>",
		Short: "Remove a channel from whichever list holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			if err := client.removeChannel(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Channel %q removed\n", name)
			return nil
		},
	}

	channelsCmd.AddCommand(listCmd)
	channelsCmd.AddCommand(allowCmd)
	channelsCmd.AddCommand(blockCmd)
	channelsCmd.AddCommand(removeCmd)
	return channelsCmd
}

func runChannelsList(cmd *cobra.Command, ctx *commandContext) error {
	client, err := ctx.client()
	if err != nil {
		return err
	}
	channels, err := client.channels(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(channels) == 0 {
		fmt.Fprintln(out, "No channels listed")
		return nil
	}
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []string{
			ch.Name,
			ch.State,
			ch.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Channel", "List", "Updated"},
		rows,
		nil,
	))
	return nil
}

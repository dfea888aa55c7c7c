package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/jonathan/tubedigest/internal/observability"
	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear the summary history",
	}
	cmd.PersistentFlags().StringVar(&session, "session", "", "History session; empty uses the default history")

	var asJSON, pretty bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := root.load(ctx)
			if err != nil {
				return err
			}
			defer shutdown(a)

			items, err := a.History(session).Load(ctx)
			switch {
			case errors.Is(err, history.ErrHistoryReset):
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", controller.TitleHistoryError, controller.DescHistoryReset)
			case err != nil:
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if pretty {
				observability.NewPrinter(out).PrintHistory(items)
				return nil
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No summaries yet.")
				return nil
			}
			for i, item := range items {
				fmt.Fprintf(out, "%d. %s (%s)\n   %s\n", i+1, item.Title, humanize.Time(time.UnixMilli(item.Timestamp)), item.URL)
			}
			return nil
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	listCmd.Flags().BoolVar(&pretty, "pretty", false, "Print a formatted box")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := root.load(ctx)
			if err != nil {
				return err
			}
			defer shutdown(a)

			if err := a.History(session).Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

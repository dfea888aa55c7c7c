package main

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/observability"
	"github.com/spf13/cobra"
)

func newSummarizeCmd(root *rootOptions) *cobra.Command {
	var (
		session string
		pretty  bool
	)
	cmd := &cobra.Command{
		Use:   "summarize <youtube-url>",
		Short: "Summarize one video and print the result as JSON",
		Long: `Summarize a YouTube video, print {title, summary, watchLink} and record it in history.
History only persists across runs with a sqlite, redis or postgres storage driver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.load(ctx)
			if err != nil {
				return err
			}
			defer shutdown(a)

			ctrl, err := a.Controller(ctx, session)
			if err != nil {
				return err
			}
			res, err := ctrl.Summarize(ctx, args[0])
			if err != nil {
				return err
			}
			for _, n := range ctrl.View().Notifications {
				if n.Variant == controller.VariantDestructive {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", n.Title, n.Description)
				}
			}

			if pretty {
				observability.NewPrinter(cmd.OutOrStdout()).PrintSummary(res)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "History session; empty uses the default history")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Print a formatted box instead of JSON")
	return cmd
}

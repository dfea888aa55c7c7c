// Package main provides the entry point for the TubeDigest server and CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/tubedigest/internal/app"
	"github.com/jonathan/tubedigest/internal/config"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "tubedigest",
		Short:         "TubeDigest YouTube video summarizer",
		Long:          "TubeDigest summarizes YouTube videos and keeps a short history of recent summaries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a JSON config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts), newSummarizeCmd(opts), newHistoryCmd(opts))
	return root
}

// load reads configuration and builds the application.
func (o *rootOptions) load(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return nil, err
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

// shutdown closes the application and flushes logs.
func shutdown(a *app.App) {
	if err := a.Close(); err != nil {
		a.Log.Warn("close failed", logging.Error(err))
	}
	_ = a.Log.Sync()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gobby-dev/gobby/internal/tasksync"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run in the foreground, importing external edits as they land",
	Long: `Watch the JSONL file and import whenever something other than
gobby writes it, e.g. a git pull or merge. Debounced exports keep running
in the background. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", theApp.engine.Path())

		watcher := tasksync.NewWatcher(theApp.engine, theApp.log)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return watcher.Run(gctx)
		})

		return ignoreCanceled(g.Wait())
	},
}

// ignoreCanceled maps context cancellation, wrapped or not, to a clean
// exit; stopping the watcher with Ctrl-C is not an error.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

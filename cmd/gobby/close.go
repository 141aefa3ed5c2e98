package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var closeFlags struct {
	reason  string
	session string
}

var closeCmd = &cobra.Command{
	Use:   "close <id>...",
	Short: "Close one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var closed []*types.Task
		for _, id := range args {
			t, err := theApp.store.CloseTask(ctx, id, closeFlags.reason)
			if err != nil {
				return err
			}
			if closeFlags.session != "" {
				if err := theApp.store.LinkSession(ctx, closeFlags.session, t.ID, types.ActionClosed); err != nil {
					return err
				}
			}
			closed = append(closed, t)
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), closed)
		}
		for _, t := range closed {
			fmt.Fprintln(cmd.OutOrStdout(), taskLine(t))
		}
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVarP(&closeFlags.reason, "reason", "r", "", "why the task is closed")
	closeCmd.Flags().StringVar(&closeFlags.session, "session", "", "work session that closed the task")
	rootCmd.AddCommand(closeCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its blockers and dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]

		task, err := theApp.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		blockers, err := theApp.store.GetBlockers(ctx, id)
		if err != nil {
			return err
		}
		blocking, err := theApp.store.GetBlocking(ctx, id)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), struct {
				*types.Task
				Blockers []*types.Task `json:"blockers,omitempty"`
				Blocking []*types.Task `json:"blocking,omitempty"`
			}{task, blockers, blocking})
		}
		printTask(cmd.OutOrStdout(), task, blockers, blocking)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

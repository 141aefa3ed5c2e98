package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var readyFlags struct {
	priority int
	taskType string
	assignee string
	limit    int
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List open tasks with no unresolved blockers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := types.WorkFilter{
			ProjectID: theApp.cfg.ProjectID,
			Limit:     readyFlags.limit,
		}
		f := cmd.Flags()
		if f.Changed("priority") {
			filter.Priority = &readyFlags.priority
		}
		if f.Changed("type") {
			t := types.TaskType(readyFlags.taskType)
			filter.Type = &t
		}
		if f.Changed("assignee") {
			filter.Assignee = &readyFlags.assignee
		}

		tasks, err := theApp.store.ReadyTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printTaskList(cmd, tasks, "Nothing is ready.")
	},
}

var blockedLimit int

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List tasks held back by unresolved blockers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		blocked, err := theApp.store.BlockedTasks(cmd.Context(), blockedLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), blocked)
		}
		if len(blocked) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing is blocked.")
			return nil
		}
		for _, b := range blocked {
			fmt.Fprintln(cmd.OutOrStdout(), taskLine(&b.Task))
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("    waiting on: "+strings.Join(b.BlockedBy, ", ")))
		}
		return nil
	},
}

func init() {
	f := readyCmd.Flags()
	f.IntVarP(&readyFlags.priority, "priority", "p", 2, "filter by priority")
	f.StringVarP(&readyFlags.taskType, "type", "t", "", "filter by type")
	f.StringVarP(&readyFlags.assignee, "assignee", "a", "", "filter by assignee")
	f.IntVarP(&readyFlags.limit, "limit", "n", 0, "maximum results (0 = all)")
	blockedCmd.Flags().IntVarP(&blockedLimit, "limit", "n", 0, "maximum results (0 = all)")
	rootCmd.AddCommand(readyCmd, blockedCmd)
}

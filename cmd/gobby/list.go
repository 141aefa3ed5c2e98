package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var listFlags struct {
	status   string
	priority int
	taskType string
	assignee string
	label    string
	parent   string
	limit    int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, filtered and ordered by priority",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter types.TaskFilter
		f := cmd.Flags()
		if f.Changed("status") {
			s := types.Status(listFlags.status)
			filter.Status = &s
		}
		if f.Changed("priority") {
			filter.Priority = &listFlags.priority
		}
		if f.Changed("type") {
			t := types.TaskType(listFlags.taskType)
			filter.Type = &t
		}
		if f.Changed("assignee") {
			filter.Assignee = &listFlags.assignee
		}
		if f.Changed("label") {
			filter.Label = &listFlags.label
		}
		if f.Changed("parent") {
			filter.ParentTaskID = &listFlags.parent
		}
		filter.Limit = listFlags.limit

		tasks, err := theApp.store.ListTasks(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tasks match.")
			return nil
		}
		for _, t := range tasks {
			fmt.Fprintln(cmd.OutOrStdout(), taskLine(t))
		}
		return nil
	},
}

func init() {
	f := listCmd.Flags()
	f.StringVarP(&listFlags.status, "status", "s", "", "filter by status")
	f.IntVarP(&listFlags.priority, "priority", "p", 2, "filter by priority")
	f.StringVarP(&listFlags.taskType, "type", "t", "", "filter by type")
	f.StringVarP(&listFlags.assignee, "assignee", "a", "", "filter by assignee")
	f.StringVarP(&listFlags.label, "label", "l", "", "filter by label")
	f.StringVar(&listFlags.parent, "parent", "", "filter by parent task id")
	f.IntVarP(&listFlags.limit, "limit", "n", 0, "maximum results (0 = all)")
	rootCmd.AddCommand(listCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var updateFlags struct {
	title       string
	description string
	status      string
	priority    int
	taskType    string
	assignee    string
	labels      []string
	parent      string
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch types.TaskPatch
		f := cmd.Flags()
		if f.Changed("title") {
			patch.Title = &updateFlags.title
		}
		if f.Changed("description") {
			patch.Description = &updateFlags.description
		}
		if f.Changed("status") {
			s := types.Status(updateFlags.status)
			patch.Status = &s
		}
		if f.Changed("priority") {
			patch.Priority = &updateFlags.priority
		}
		if f.Changed("type") {
			t := types.TaskType(updateFlags.taskType)
			patch.Type = &t
		}
		if f.Changed("assignee") {
			patch.Assignee = &updateFlags.assignee
		}
		if f.Changed("label") {
			patch.Labels = &updateFlags.labels
		}
		if f.Changed("parent") {
			patch.ParentTaskID = &updateFlags.parent
		}
		if patch.IsZero() {
			return fmt.Errorf("nothing to update, pass at least one field flag")
		}

		updated, err := theApp.store.UpdateTask(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), updated)
		}
		fmt.Fprintln(cmd.OutOrStdout(), taskLine(updated))
		return nil
	},
}

func init() {
	f := updateCmd.Flags()
	f.StringVar(&updateFlags.title, "title", "", "new title")
	f.StringVarP(&updateFlags.description, "description", "d", "", "new description")
	f.StringVarP(&updateFlags.status, "status", "s", "", "open, in_progress, or closed")
	f.IntVarP(&updateFlags.priority, "priority", "p", 2, "priority 0 (highest) to 4")
	f.StringVarP(&updateFlags.taskType, "type", "t", "", "bug, feature, task, epic, or chore")
	f.StringVarP(&updateFlags.assignee, "assignee", "a", "", "assignee (empty to clear)")
	f.StringSliceVarP(&updateFlags.labels, "label", "l", nil, "replacement label set (repeatable)")
	f.StringVar(&updateFlags.parent, "parent", "", "new parent task id (empty to detach)")
	rootCmd.AddCommand(updateCmd)
}

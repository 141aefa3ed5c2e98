package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var createFlags struct {
	description string
	priority    int
	taskType    string
	assignee    string
	labels      []string
	parent      string
	session     string
	blockedBy   []string
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		task := &types.Task{
			ProjectID:             theApp.cfg.ProjectID,
			ParentTaskID:          createFlags.parent,
			DiscoveredInSessionID: createFlags.session,
			Title:                 args[0],
			Description:           createFlags.description,
			Priority:              createFlags.priority,
			Type:                  types.TaskType(createFlags.taskType),
			Assignee:              createFlags.assignee,
			Labels:                createFlags.labels,
		}

		created, err := theApp.store.CreateTask(ctx, task)
		if err != nil {
			return err
		}

		for _, blocker := range createFlags.blockedBy {
			_, err := theApp.store.AddDependency(ctx, &types.Dependency{
				TaskID:    created.ID,
				DependsOn: blocker,
				Type:      types.DepBlocks,
			})
			if err != nil {
				return fmt.Errorf("task %s created, but blocker %s: %w", created.ID, blocker, err)
			}
		}

		if createFlags.session != "" {
			if err := theApp.store.LinkSession(ctx, createFlags.session, created.ID, types.ActionDiscovered); err != nil {
				return err
			}
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), created)
		}
		fmt.Fprintln(cmd.OutOrStdout(), taskLine(created))
		return nil
	},
}

func init() {
	f := createCmd.Flags()
	f.StringVarP(&createFlags.description, "description", "d", "", "task description")
	f.IntVarP(&createFlags.priority, "priority", "p", 2, "priority 0 (highest) to 4")
	f.StringVarP(&createFlags.taskType, "type", "t", "task", "bug, feature, task, epic, or chore")
	f.StringVarP(&createFlags.assignee, "assignee", "a", "", "assignee")
	f.StringSliceVarP(&createFlags.labels, "label", "l", nil, "label (repeatable)")
	f.StringVar(&createFlags.parent, "parent", "", "parent task id (child gets a dotted id)")
	f.StringVar(&createFlags.session, "session", "", "work session that discovered this task")
	f.StringSliceVar(&createFlags.blockedBy, "blocked-by", nil, "task id this task is blocked by (repeatable)")
	rootCmd.AddCommand(createCmd)
}

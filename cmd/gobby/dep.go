package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage and inspect dependency edges",
}

var depAddType string

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Add a dependency edge",
	Long: `Add a dependency edge. With --type blocks (the default) the edge
feeds the ready-work calculation and is rejected if it would create a
cycle. related and discovered-from edges are associative only.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := theApp.store.AddDependency(cmd.Context(), &types.Dependency{
			TaskID:    args[0],
			DependsOn: args[1],
			Type:      types.DepType(depAddType),
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), dep)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", dep.TaskID, dep.Type, dep.DependsOn)
		return nil
	},
}

var depRemoveType string

var depRemoveCmd = &cobra.Command{
	Use:   "remove <task-id> <depends-on-id>",
	Short: "Remove dependency edges between two tasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := theApp.store.RemoveDependency(cmd.Context(), args[0], args[1], types.DepType(depRemoveType))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d edge(s)\n", n)
		return nil
	},
}

var depBlockersCmd = &cobra.Command{
	Use:   "blockers <id>",
	Short: "List the tasks this task is blocked by",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := theApp.store.GetBlockers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTaskList(cmd, tasks, "No blockers.")
	},
}

var depBlockingCmd = &cobra.Command{
	Use:   "blocking <id>",
	Short: "List the tasks this task blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := theApp.store.GetBlocking(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTaskList(cmd, tasks, "Not blocking anything.")
	},
}

var depTreeFlags struct {
	direction string
	depth     int
}

var depTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Show the dependency tree around a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := theApp.store.GetDependencyTree(cmd.Context(), args[0],
			types.TreeDirection(depTreeFlags.direction), depTreeFlags.depth)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), nodes)
		}
		printTree(cmd.OutOrStdout(), nodes)
		return nil
	},
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Scan the blocking graph for cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, err := theApp.store.CheckCycles(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), cycles)
		}
		if len(cycles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No cycles.")
			return nil
		}
		for _, c := range cycles {
			fmt.Fprintln(cmd.OutOrStdout(), formatCycle(c))
		}
		return fmt.Errorf("%d blocking cycle(s) found", len(cycles))
	},
}

func formatCycle(cycle []string) string {
	out := ""
	for _, id := range cycle {
		out += idStyle.Render(id) + " → "
	}
	return out + idStyle.Render(cycle[0])
}

func printTaskList(cmd *cobra.Command, tasks []*types.Task, empty string) error {
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), tasks)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), empty)
		return nil
	}
	for _, t := range tasks {
		fmt.Fprintln(cmd.OutOrStdout(), taskLine(t))
	}
	return nil
}

func init() {
	depAddCmd.Flags().StringVarP(&depAddType, "type", "t", "blocks", "blocks, related, or discovered-from")
	depRemoveCmd.Flags().StringVarP(&depRemoveType, "type", "t", "", "edge kind to remove (default: any)")
	depTreeCmd.Flags().StringVar(&depTreeFlags.direction, "direction", "blockers", "blockers, blocking, or both")
	depTreeCmd.Flags().IntVar(&depTreeFlags.depth, "depth", 0, "maximum depth (0 = unlimited)")
	depCmd.AddCommand(depAddCmd, depRemoveCmd, depBlockersCmd, depBlockingCmd, depTreeCmd, depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}

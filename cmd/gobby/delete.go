package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCascade bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Long: `Delete a task. Without --cascade the delete fails if the task has
child tasks or dependency edges; with --cascade the task, its descendants,
and every edge touching them are removed together.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := theApp.store.DeleteTask(cmd.Context(), args[0], deleteCascade)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s)\n", n)
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteCascade, "cascade", false, "also delete descendants and incident edges")
	rootCmd.AddCommand(deleteCmd)
}

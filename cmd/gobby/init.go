package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .gobby data directory and a starter config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagDir
		if dir == "" {
			var err error
			dir, err = os.Getwd()
			if err != nil {
				return err
			}
		}
		path, err := config.WriteDefault(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized gobby, config at %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Commit .gobby/tasks.jsonl and .gobby/config.yaml; ignore .gobby/gobby.db*")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

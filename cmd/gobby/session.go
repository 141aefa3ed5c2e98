package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Associate tasks with work sessions",
}

var sessionLinkAction string

var sessionLinkCmd = &cobra.Command{
	Use:   "link <session-id> <task-id>",
	Short: "Record that a session touched a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := types.SessionAction(sessionLinkAction)
		if err := theApp.store.LinkSession(cmd.Context(), args[0], args[1], action); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", args[0], action, args[1])
		return nil
	},
}

var sessionUnlinkAction string

var sessionUnlinkCmd = &cobra.Command{
	Use:   "unlink <session-id> <task-id>",
	Short: "Remove a session association",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return theApp.store.UnlinkSession(cmd.Context(), args[0], args[1],
			types.SessionAction(sessionUnlinkAction))
	},
}

var sessionTasksCmd = &cobra.Command{
	Use:   "tasks <session-id>",
	Short: "List the tasks a session touched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := theApp.store.SessionTasks(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printLinks(cmd, links)
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <task-id>",
	Short: "List the sessions that touched a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := theApp.store.TaskSessions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printLinks(cmd, links)
	},
}

func printLinks(cmd *cobra.Command, links []*types.SessionLink) error {
	if flagJSON {
		return printJSON(cmd.OutOrStdout(), links)
	}
	if len(links) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No session links.")
		return nil
	}
	for _, l := range links {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s %s %s\n",
			dimStyle.Render(l.CreatedAt.Format("2006-01-02 15:04")),
			l.SessionID, l.Action, idStyle.Render(l.TaskID))
	}
	return nil
}

func init() {
	sessionLinkCmd.Flags().StringVarP(&sessionLinkAction, "action", "", "worked_on",
		"worked_on, discovered, mentioned, or closed")
	sessionUnlinkCmd.Flags().StringVarP(&sessionUnlinkAction, "action", "", "worked_on",
		"association kind to remove")
	sessionCmd.AddCommand(sessionLinkCmd, sessionUnlinkCmd, sessionTasksCmd, sessionHistoryCmd)
	rootCmd.AddCommand(sessionCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncFlags struct {
	importOnly bool
	exportOnly bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the store with the JSONL file",
	Long: `Import the JSONL file (newer records win) and export the merged
store back out. --import-only and --export-only run one half.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		// The startup import already ran; re-running here picks up edits
		// made while the command was being typed. Cheap either way.
		if !syncFlags.exportOnly {
			res, err := theApp.engine.Import(ctx)
			if err != nil {
				return err
			}
			if flagJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Imported: %d created, %d updated, %d skipped",
					res.Created, res.Updated, res.Skipped)
				if res.Malformed > 0 {
					fmt.Fprintf(out, ", %d malformed", res.Malformed)
				}
				fmt.Fprintln(out)
				for _, e := range res.Errors {
					fmt.Fprintln(out, "  "+dimStyle.Render(e))
				}
				for _, c := range res.Cycles {
					fmt.Fprintln(out, "  cycle: "+formatCycle(c))
				}
			}
		}

		if !syncFlags.importOnly {
			if err := theApp.engine.Export(ctx); err != nil {
				return err
			}
			if !flagJSON {
				fmt.Fprintf(out, "Exported to %s\n", theApp.engine.Path())
			}
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := theApp.engine.Status()
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}
		out := cmd.OutOrStdout()
		if st.LastExportAt.IsZero() {
			fmt.Fprintln(out, "Never exported.")
		} else {
			fmt.Fprintf(out, "Last export: %s\n", st.LastExportAt.Format("2006-01-02 15:04:05 MST"))
		}
		if st.Fingerprint != "" {
			fmt.Fprintf(out, "Content hash: %s\n", st.Fingerprint[:12])
		}
		if st.Pending {
			fmt.Fprintln(out, "Changes pending export.")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFlags.importOnly, "import-only", false, "only import")
	syncCmd.Flags().BoolVar(&syncFlags.exportOnly, "export-only", false, "only export")
	syncCmd.MarkFlagsMutuallyExclusive("import-only", "export-only")
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

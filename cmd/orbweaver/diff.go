package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/orbweaver/internal/report"
)

// NewDiffCmd creates the diff command.
func NewDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show a line diff between two crawl outputs",
		Long: `Diff compares two files written by "orbweaver crawl" and prints a patch
followed by the number of added and removed lines.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldText, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			newText, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			res := report.Diff(string(oldText), string(newText))
			out := cmd.OutOrStdout()
			if res.Added == 0 && res.Removed == 0 {
				fmt.Fprintln(out, "No changes")
				return nil
			}
			fmt.Fprint(out, res.Text)
			fmt.Fprintf(out, "\n%d lines added, %d lines removed\n", res.Added, res.Removed)
			return nil
		},
	}
}

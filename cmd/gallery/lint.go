package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
)

func newLintCmd() *cobra.Command {
	var feedPath string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check a feed file the way feed readers and Visual Studio see it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(cmd.OutOrStdout(), feedPath)
		},
	}
	cmd.Flags().StringVar(&feedPath, "feed", "atom.xml", "feed to check")
	return cmd
}

func runLint(out io.Writer, feedPath string) error {
	data, err := os.ReadFile(feedPath)
	if err != nil {
		return err
	}
	report, err := catalog.Lint(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %q, %d entries\n", feedPath, report.Title, report.Entries)
	for _, p := range report.Problems {
		fmt.Fprintln(out, "  "+p.String())
	}
	if n := report.Errors(); n > 0 {
		return fmt.Errorf("%d error(s) in %s", n, feedPath)
	}
	return nil
}

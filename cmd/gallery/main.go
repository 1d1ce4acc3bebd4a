package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ gallery: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gallery",
		Short:         "Private VSIX gallery",
		Long:          `Publishes VSIX packages into an Atom feed that Visual Studio can use as a private gallery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd(), newMergeCmd(), newLintCmd(), newVersionCmd())
	return rootCmd
}

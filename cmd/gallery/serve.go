package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/gallery/internal/app"
	"github.com/MrSnakeDoc/gallery/internal/config"
)

func newServeCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gallery HTTP service",
		Long: `Run the gallery HTTP service.

Settings come from GALLERY_* environment variables. A YAML file given with
--config supplies defaults for anything the environment leaves unset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				if err := os.Setenv(config.EnvPrefix+"CONFIG_FILE", cfgFile); err != nil {
					return err
				}
			}
			a, err := app.New()
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	return cmd
}

// Package main implements the entry point for the meal-plan API server,
// which accepts meal-plan generation requests, runs the generation pipeline
// in the background and serves task status to polling clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. Running the binary without a subcommand
// serves the API.
func newRootCommand() *cobra.Command {
	var configPath string

	serve := newServeCommand(&configPath)

	root := &cobra.Command{
		Use:           "mealplan-api",
		Short:         "Meal plan generation API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a YAML config file (default: ./config.yaml if present)")

	root.AddCommand(serve, newMigrateCommand(&configPath))
	return root
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/apiregistry/internal/app"
	"github.com/MrSnakeDoc/apiregistry/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	a, err := app.New(config.Load())
	if err != nil {
		return err
	}
	return a.Run()
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/apiregistry/internal/config"
	"github.com/MrSnakeDoc/apiregistry/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "apiregistry",
		Short: "Registry of API description documents",
		Long: `apiregistry stores OpenAPI 3 and Swagger 2 documents by URL, keeps them fresh,
tracks the liveness of their URLs and answers relation queries over the
x-bte-kgs-operations they publish.

Configuration is read from REGISTRY_* environment variables, after loading
ENV_FILE or .env.local and .env when present.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(newServeCmd(), newValidateCmd(), newTokenCmd())
	return root
}

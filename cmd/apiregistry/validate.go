package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

func newValidateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "validate <file|url>",
		Short: "Validate an API description document without registering it",
		Long: `Validate an OpenAPI 3 or Swagger 2 document (JSON or YAML) from a local file
or an http(s) URL. Nothing is stored.

Examples:
  apiregistry validate ./openapi.yml
  apiregistry validate https://example.org/api.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := load(cmd, args[0], timeout)
			if err != nil {
				return err
			}
			res, err := validator.New().Validate(raw)
			if err != nil {
				return fmt.Errorf("%s", domain.ReasonOf(err))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n", registry.ValidDetails(res.Version))
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", fetch.DefaultTimeout, "download timeout for URLs")
	return cmd
}

func load(cmd *cobra.Command, source string, timeout time.Duration) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		return raw, nil
	}

	out := fetch.New(fetch.Options{Timeout: timeout}).Fetch(cmd.Context(), source)
	if out.Err != nil {
		return nil, fmt.Errorf("download %s: %w", source, out.Err)
	}
	if !out.Succeeded() {
		return nil, fmt.Errorf("download %s: HTTP %d", source, out.Code)
	}
	return out.Body, nil
}

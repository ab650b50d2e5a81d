// Package main writes the OpenAPI 3.0 document for the LocalFlow HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaileenssyed/LocalFlow/httpapi"
	"github.com/spf13/cobra"
)

const header = `# OpenAPI 3.0 Specification for the LocalFlow API
# Generated by openapi-generator
# DO NOT EDIT MANUALLY - regenerate with: go run ./cmd/openapi-generator
`

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		out     string
		version string
	)

	cmd := &cobra.Command{
		Use:          "openapi-generator",
		Short:        "Generate the OpenAPI spec for the LocalFlow API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			if err := generate(out, version); err != nil {
				return err
			}
			logger.Info("Generated OpenAPI spec", "path", out, "version", version)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "./specs/openapi.v3.yaml", "Output path for OpenAPI spec")
	cmd.Flags().StringVar(&version, "version", "0.1.0", "API version to record")
	return cmd
}

func generate(out, version string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := httpapi.MarshalOpenAPI(version)
	if err != nil {
		return fmt.Errorf("marshal OpenAPI spec: %w", err)
	}
	content := append([]byte(strings.TrimSpace(header)+"\n\n"), data...)
	if err := os.WriteFile(out, content, 0o644); err != nil {
		return fmt.Errorf("write OpenAPI spec: %w", err)
	}
	return nil
}

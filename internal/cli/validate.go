package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a config file against the schema before using it.

This checks:
  - Only known keys are present
  - Filter values are booleans, strings, {pattern: ...} or {glob: ...}
  - Patterns, globs and durations parse

Examples:
  remote-sourcemap-loader validate --config loader.yaml`,
	RunE: runValidate,
}

var (
	validateConfig string
)

func init() {
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Config file path")

	validateCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.ParseFile(validateConfig)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Config file is valid")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  File:            %s\n", validateConfig)
	fmt.Fprintf(out, "  Source dir:      %s\n", opts.SourceDir)
	if opts.CacheDir == "" {
		fmt.Fprintf(out, "  Cache:           disabled\n")
	} else {
		fmt.Fprintf(out, "  Cache:           %s\n", opts.CacheDir)
	}
	fmt.Fprintf(out, "  Exclude rules:   %d\n", len(cfg.Exclude))
	fmt.Fprintf(out, "  Include content: %s\n", describe(cfg.IncludeContent))
	fmt.Fprintf(out, "  Emit content:    %s\n", describe(cfg.EmitContent))

	if len(cfg.PreFetchRewrite) > 0 {
		fmt.Fprintf(out, "  Rewrites:        %d\n", len(cfg.PreFetchRewrite))
	}
	if opts.Concurrency > 0 {
		fmt.Fprintf(out, "  Concurrency:     %d\n", opts.Concurrency)
	}
	if opts.FetchTimeout > 0 {
		fmt.Fprintf(out, "  Fetch timeout:   %s\n", opts.FetchTimeout)
	}
	if cfg.RootContext != "" {
		fmt.Fprintf(out, "  Root context:    %s\n", cfg.RootContext)
	}

	return nil
}

func describe(f *config.Filter) string {
	if f.Spec().IsZero() {
		return "always"
	}
	return f.Spec().String()
}

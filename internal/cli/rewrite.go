package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/host"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/loader"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/metrics"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/resolve"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/sourcemap"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite FILE...",
	Short: "Rewrite the source maps of generated files",
	Long: `Rewrite the source map referenced by each FILE.

For every FILE the sourceMappingURL comment is read, the map is loaded and
each of its sources is fetched. FILE is written to the output directory with
a comment pointing at the rewritten <name>.map next to it. Fetched sources are
emitted under <out-dir>/<source-dir>/.

Files without a sourceMappingURL comment are copied unchanged.

Examples:
  # Rewrite into dist/
  remote-sourcemap-loader rewrite build/app.js --out-dir dist

  # Skip webpack runtime sources and keep content out of the map
  remote-sourcemap-loader rewrite build/*.js \
    --exclude "webpack/**" \
    --no-include-content

  # Use a config file, prompt before overwriting existing outputs
  remote-sourcemap-loader rewrite build/app.js \
    --config loader.yaml \
    --interactive`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRewrite,
}

var (
	rewriteFlags       loaderFlags
	rewriteOutDir      string
	rewriteInteractive bool
	rewriteNoMaps      bool
)

func init() {
	rewriteFlags.register(rewriteCmd)
	rewriteCmd.Flags().StringVarP(&rewriteOutDir, "out-dir", "o", "dist", "Output directory")
	rewriteCmd.Flags().BoolVar(&rewriteInteractive, "interactive", false, "Prompt before overwriting existing files")
	rewriteCmd.Flags().BoolVar(&rewriteNoMaps, "no-source-maps", false, "Copy files unchanged without processing source maps")

	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := newLogger()
	if err != nil {
		return err
	}

	opts, root, err := rewriteFlags.options(cmd)
	if err != nil {
		return err
	}
	rec := metrics.New()
	opts.Logger = &log
	opts.Metrics = rec

	resolver, err := resolve.New(resolve.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	hostOpts := host.Options{
		Root:       root,
		OutDir:     rewriteOutDir,
		Resolver:   resolver,
		SourceMaps: !rewriteNoMaps,
		Logger:     &log,
	}
	if rewriteInteractive {
		hostOpts.Confirm = promptOverwrite
	}
	h, err := host.New(hostOpts)
	if err != nil {
		return err
	}

	l := loader.New(opts)
	rewritten := 0
	for _, file := range args {
		ok, err := rewriteFile(ctx, l, h, file)
		if err != nil {
			return err
		}
		if ok {
			rewritten++
		}
	}

	for _, w := range h.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	fmt.Fprintf(os.Stderr, "\nRewrite complete:\n")
	fmt.Fprintf(os.Stderr, "  Files:     %d\n", len(args))
	fmt.Fprintf(os.Stderr, "  Rewritten: %d\n", rewritten)
	fmt.Fprintf(os.Stderr, "  Emitted:   %d\n", len(h.Emitted()))
	fmt.Fprintf(os.Stderr, "  Warnings:  %d\n", len(h.Warnings()))

	if rewriteFlags.metricsFile != "" {
		if err := rec.WriteTextfile(rewriteFlags.metricsFile); err != nil {
			return err
		}
	}
	return nil
}

// rewriteFile loads one file and writes it and its map to the output
// directory. It reports whether a map was rewritten.
func rewriteFile(ctx context.Context, l *loader.Loader, h *host.FS, file string) (bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", file, err)
	}

	res, err := h.For(file)
	if err != nil {
		return false, err
	}

	out, err := l.Load(ctx, res, string(data), nil)
	if err != nil {
		return false, fmt.Errorf("failed to rewrite %s: %w", file, err)
	}

	name := filepath.Base(file)
	if !out.Rewritten {
		if _, err := h.WriteFile(name, []byte(out.Content)); err != nil {
			return false, err
		}
		return false, nil
	}

	mapJSON, err := json.Marshal(out.Map)
	if err != nil {
		return false, fmt.Errorf("failed to encode source map for %s: %w", file, err)
	}
	if _, err := h.WriteFile(name, []byte(sourcemap.AppendURL(out.Content, name+".map"))); err != nil {
		return false, err
	}
	if _, err := h.WriteFile(name+".map", mapJSON); err != nil {
		return false, err
	}

	fmt.Fprintf(os.Stderr, "Rewrote %s (%d sources)\n", file, len(out.Map.Sources))
	return true, nil
}

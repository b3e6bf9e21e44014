package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/esbuildplugin"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/host"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/loader"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/metrics"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/resolve"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle ENTRY...",
	Short: "Build with esbuild, rewriting input source maps",
	Long: `Build ENTRY points with esbuild.

Every JavaScript or TypeScript input carrying a sourceMappingURL comment is
loaded through the source map rewriter before esbuild sees it, so the output
map points at the fetched sources. Sources are emitted under --out-dir.

Examples:
  # Bundle into dist/
  remote-sourcemap-loader bundle src/index.js --out-dir dist

  # Transform each entry on its own
  remote-sourcemap-loader bundle build/a.js build/b.js --bundle=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBundle,
}

var (
	bundleFlags  loaderFlags
	bundleOutDir string
	bundleBundle bool
)

func init() {
	bundleFlags.register(bundleCmd)
	bundleCmd.Flags().StringVarP(&bundleOutDir, "out-dir", "o", "dist", "Output directory")
	bundleCmd.Flags().BoolVar(&bundleBundle, "bundle", true, "Bundle imports into the output")

	rootCmd.AddCommand(bundleCmd)
}

func runBundle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	log, err := newLogger()
	if err != nil {
		return err
	}

	opts, root, err := bundleFlags.options(cmd)
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
	h, err := host.New(host.Options{
		Root:       root,
		OutDir:     bundleOutDir,
		Resolver:   resolver,
		SourceMaps: true,
		Logger:     &log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Bundling %d entry point(s) into %s...\n", len(args), bundleOutDir)

	result := esbuildplugin.Build(ctx, esbuildplugin.Options{
		Loader: loader.New(opts),
		Host:   h,
	}, esbuildplugin.BuildOptions{
		EntryPoints: args,
		Outdir:      bundleOutDir,
		Bundle:      bundleBundle,
		Write:       true,
	})

	for _, m := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", m.Text)
	}
	for _, m := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", m.Text)
	}

	if bundleFlags.metricsFile != "" {
		if err := rec.WriteTextfile(bundleFlags.metricsFile); err != nil {
			return err
		}
	}

	if len(result.Errors) > 0 {
		return fmt.Errorf("build failed with %d error(s)", len(result.Errors))
	}

	fmt.Fprintf(os.Stderr, "\nBundle complete:\n")
	fmt.Fprintf(os.Stderr, "  Outputs:  %d\n", len(result.OutputFiles))
	fmt.Fprintf(os.Stderr, "  Emitted:  %d\n", len(h.Emitted()))
	fmt.Fprintf(os.Stderr, "  Warnings: %d\n", len(h.Warnings()))
	return nil
}

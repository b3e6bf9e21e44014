package cli

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/cache"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/config"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the remote source cache",
	Long: `Inspect the on-disk cache of fetched remote sources.

Cached files live at <cache-dir>/<hostname>/<path>. Entries are never
expired; delete the directory to refresh them.`,
}

var cachePathCmd = &cobra.Command{
	Use:   "path URL",
	Short: "Print the cache file for a remote source",
	Long: `Print the cache file a remote source URL is stored at.

Examples:
  remote-sourcemap-loader cache path https://cdn.example.com/lib/a.js`,
	Args: cobra.ExactArgs(1),
	RunE: runCachePath,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached remote sources",
	Long: `List cached remote sources.

Examples:
  # List everything
  remote-sourcemap-loader cache list

  # List sources from one host, without maps
  remote-sourcemap-loader cache list --include "cdn.example.com/**" --exclude "**/*.map"`,
	Args: cobra.NoArgs,
	RunE: runCacheList,
}

var (
	cacheDir      string
	cacheIncludes []string
	cacheExcludes []string
)

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: "+cache.DefaultDir+")")
	cacheListCmd.Flags().StringArrayVarP(&cacheIncludes, "include", "i", []string{}, "Include patterns (glob syntax, can be specified multiple times)")
	cacheListCmd.Flags().StringArrayVarP(&cacheExcludes, "exclude", "e", []string{}, "Exclude patterns (glob syntax, can be specified multiple times)")

	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheStore() (*cache.Store, error) {
	if cacheDir != "" {
		return cache.New(cacheDir), nil
	}
	cfg := &config.Config{}
	if err := cfg.LoadEnv(".env"); err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	if opts.CacheDir == "" {
		return nil, fmt.Errorf("cache is disabled")
	}
	return cache.New(opts.CacheDir), nil
}

func runCachePath(cmd *cobra.Command, args []string) error {
	store, err := cacheStore()
	if err != nil {
		return err
	}

	u, err := url.Parse(args[0])
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("not an absolute URL: %s", args[0])
	}

	p, _ := store.Path(u)
	fmt.Fprintln(cmd.OutOrStdout(), p)
	if !store.CanRead(p) {
		fmt.Fprintln(os.Stderr, "  (not cached)")
	}
	return nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	store, err := cacheStore()
	if err != nil {
		return err
	}

	pf, err := filter.NewPathFilter(cacheIncludes, cacheExcludes)
	if err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Listing cache at %s...\n\n", store.Dir())

	var entries []cache.Entry
	err = store.Walk(func(e cache.Entry) error {
		if pf.Matches(e.Key) {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list cache: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cached sources found.")
		return nil
	}

	// Print results as a table
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "---\t----\t--------")
	var total int64
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.Key, e.Size, e.ModTime.UTC().Format("2006-01-02 15:04:05 UTC"))
		total += e.Size
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d sources, %d bytes\n", len(entries), total)
	return nil
}

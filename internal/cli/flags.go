package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/config"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/pipeline"
)

// loaderFlags are the pipeline settings shared by rewrite and bundle.
// Flags that were set override the config file and the environment.
type loaderFlags struct {
	configFile  string
	envFiles    []string
	sourceDir   string
	cacheDir    string
	noCache     bool
	excludes    []string
	noInclude   bool
	noEmit      bool
	root        string
	concurrency int
	timeout     time.Duration
	metricsFile string
}

func (f *loaderFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.configFile, "config", "c", "", "Config file (YAML)")
	fl.StringArrayVar(&f.envFiles, "env-file", []string{".env"}, "Env files to load (can be specified multiple times)")
	fl.StringVar(&f.sourceDir, "source-dir", pipeline.DefaultSourceDir, "Directory prefix for emitted sources")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "Cache directory for remote sources")
	fl.BoolVar(&f.noCache, "no-cache", false, "Disable the remote source cache")
	fl.StringArrayVarP(&f.excludes, "exclude", "e", []string{}, "Exclude sources matching a glob (can be specified multiple times)")
	fl.BoolVar(&f.noInclude, "no-include-content", false, "Do not embed source content in the map")
	fl.BoolVar(&f.noEmit, "no-emit-content", false, "Do not emit source content as files")
	fl.StringVar(&f.root, "root", "", "Root context output names are relative to (default: working directory)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "Maximum concurrent fetches per map (0 = unbounded)")
	fl.DurationVar(&f.timeout, "timeout", 0, "Timeout for each remote fetch (0 = none)")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
}

// options builds pipeline options from the config file, the environment
// and the flags of cmd. It also returns the root context.
func (f *loaderFlags) options(cmd *cobra.Command) (pipeline.Options, string, error) {
	cfg := &config.Config{}
	if f.configFile != "" {
		var err error
		cfg, err = config.ParseFile(f.configFile)
		if err != nil {
			return pipeline.Options{}, "", err
		}
	}
	if err := cfg.LoadEnv(f.envFiles...); err != nil {
		return pipeline.Options{}, "", err
	}

	opts, err := cfg.Options()
	if err != nil {
		return pipeline.Options{}, "", err
	}

	changed := cmd.Flags().Changed
	if changed("source-dir") {
		opts.SourceDir = f.sourceDir
	}
	if changed("cache-dir") {
		opts.CacheDir = f.cacheDir
	}
	if f.noCache {
		opts.CacheDir = ""
	}
	for _, pattern := range f.excludes {
		spec, err := filter.Glob(pattern)
		if err != nil {
			return pipeline.Options{}, "", err
		}
		opts.Exclude = append(opts.Exclude, filter.Compile(spec, filter.Never))
	}
	if f.noInclude {
		opts.IncludeContent = filter.Never
	}
	if f.noEmit {
		opts.EmitContent = filter.Never
	}
	if changed("concurrency") {
		opts.Concurrency = f.concurrency
	}
	if changed("timeout") {
		opts.FetchTimeout = f.timeout
	}

	root := cfg.RootContext
	if f.root != "" {
		root = f.root
	}
	return opts, root, nil
}

// newLogger returns the console logger used by every command.
func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		Level(level).
		With().Timestamp().Logger(), nil
}

package esbuildplugin

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
)

// BuildOptions are the esbuild settings exposed by the bundle command.
type BuildOptions struct {
	EntryPoints []string
	Outdir      string
	Bundle      bool
	Write       bool
}

// Build runs esbuild with the plugin installed and linked source maps.
func Build(ctx context.Context, opts Options, b BuildOptions) api.BuildResult {
	return api.Build(api.BuildOptions{
		EntryPoints: b.EntryPoints,
		Outdir:      b.Outdir,
		Bundle:      b.Bundle,
		Write:       b.Write,
		Sourcemap:   api.SourceMapLinked,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{New(ctx, opts)},
	})
}

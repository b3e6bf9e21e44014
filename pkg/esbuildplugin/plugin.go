// Package esbuildplugin runs the loader inside an esbuild build.
//
// The plugin hooks OnLoad for JavaScript and TypeScript files. Files carrying
// a sourceMappingURL are handed to esbuild with the rewritten map inlined, so
// esbuild composes it into the map of the bundle.
package esbuildplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/host"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/loader"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/sourcemap"
)

// Name is the plugin name reported in esbuild messages.
const Name = "remote-sourcemap-loader"

// DefaultFilter selects the files the plugin loads.
const DefaultFilter = `\.[cm]?[jt]sx?$`

type Options struct {
	Loader *loader.Loader
	Host   *host.FS

	// Filter is an esbuild (Go regexp) path filter. Empty uses DefaultFilter.
	Filter string
}

// New returns the plugin. ctx bounds every load.
func New(ctx context.Context, opts Options) api.Plugin {
	filter := opts.Filter
	if filter == "" {
		filter = DefaultFilter
	}

	return api.Plugin{
		Name: Name,
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: filter, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					return load(ctx, opts, args.Path)
				})
		},
	}
}

func load(ctx context.Context, opts Options, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := opts.Host.For(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	rec := &recorder{Resource: res}

	out, err := opts.Loader.Load(ctx, rec, string(data), nil)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	contents := out.Content
	if out.Rewritten {
		bs, err := json.Marshal(out.Map)
		if err != nil {
			return api.OnLoadResult{}, fmt.Errorf("failed to encode source map for %s: %w", path, err)
		}
		contents = sourcemap.AppendURL(contents, sourcemap.EncodeDataURL(bs))
	}

	return api.OnLoadResult{
		PluginName: Name,
		Contents:   &contents,
		Loader:     loaderFor(path),
		ResolveDir: filepath.Dir(path),
		Warnings:   rec.messages(path),
		WatchFiles: rec.dependencies(),
	}, nil
}

func loaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

// recorder keeps the warnings and dependencies of one load so they can be
// reported to esbuild, and forwards them to the shared host.
type recorder struct {
	*host.Resource

	mu       sync.Mutex
	warnings []error
	deps     []string
}

func (r *recorder) EmitWarning(err error) {
	r.mu.Lock()
	r.warnings = append(r.warnings, err)
	r.mu.Unlock()
	r.Resource.EmitWarning(err)
}

func (r *recorder) AddDependency(path string) {
	r.mu.Lock()
	r.deps = append(r.deps, path)
	r.mu.Unlock()
	r.Resource.AddDependency(path)
}

func (r *recorder) messages(path string) []api.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.warnings) == 0 {
		return nil
	}
	out := make([]api.Message, len(r.warnings))
	for i, err := range r.warnings {
		out[i] = api.Message{
			PluginName: Name,
			Text:       err.Error(),
			Location:   &api.Location{File: path},
		}
	}
	return out
}

func (r *recorder) dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deps...)
}

// Package loader rewrites the source map attached to a generated file.
//
// The loader finds the sourceMappingURL pragma in the file content, reads the
// referenced map, runs its sources through the pipeline and returns the
// content without the pragma together with the rewritten map. Only problems
// locating, reading or parsing the map itself are returned as errors; every
// per-source problem is reported as a host warning.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/pipeline"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/sourcemap"
)

// ErrMapNotFound is returned when the sourceMappingURL cannot be resolved.
var ErrMapNotFound = errors.New("source map not found")

// Host is the build step a file is loaded in.
type Host interface {
	pipeline.Host

	// ResourcePath is the absolute path of the file being loaded. Map
	// requests are resolved from its directory.
	ResourcePath() string

	// AddDependency records that the output depends on path.
	AddDependency(path string)

	// SourceMapEnabled reports whether the build produces source maps.
	SourceMapEnabled() bool
}

// Result is the output of Load. Map is the existing map when the content
// was passed through.
type Result struct {
	Content string
	Map     *sourcemap.SourceMap
	// Rewritten is set when Map was produced by this load.
	Rewritten bool
}

// Loader rewrites source maps with one set of options.
type Loader struct {
	opts pipeline.Options
}

// New returns a loader using opts for every file.
func New(opts pipeline.Options) *Loader {
	return &Loader{opts: opts}
}

// Load rewrites content and its source map. existing is the map produced by
// a previous build step, or nil.
func (l *Loader) Load(ctx context.Context, host Host, content string, existing *sourcemap.SourceMap) (Result, error) {
	unchanged := Result{Content: content, Map: existing}

	if !host.SourceMapEnabled() {
		return unchanged, nil
	}

	mapURL, ok := sourcemap.FindURL(content)
	if !ok {
		return unchanged, nil
	}

	data, mapDir, err := l.readMap(ctx, host, mapURL)
	if err != nil {
		return Result{}, err
	}
	if data == nil {
		return unchanged, nil
	}

	sm, err := sourcemap.Parse(data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load source map '%s': %w", mapURL, err)
	}

	if existing != nil {
		host.EmitWarning(fmt.Errorf("a previous step already produced a source map for %s, it will be overwritten", host.ResourcePath()))
	}

	sourceRoot := filepath.Join(mapDir, filepath.FromSlash(sm.SourceRoot))
	resolved := pipeline.New(l.opts, host).Run(ctx, sm.Sources, sm.SourcesContent, sourceRoot)

	sm.Sources = make([]string, len(resolved))
	sm.SourcesContent = make([]*string, len(resolved))
	for i, r := range resolved {
		sm.Sources[i] = r.Source
		sm.SourcesContent[i] = r.SourceContent
	}

	return Result{
		Content:   sourcemap.RemoveURL(content),
		Map:       sm,
		Rewritten: true,
	}, nil
}

// readMap returns the map referenced by mapURL and the directory its sources
// are relative to. A nil map with a nil error means the URL was skipped.
func (l *Loader) readMap(ctx context.Context, host Host, mapURL string) ([]byte, string, error) {
	dir := filepath.Dir(host.ResourcePath())

	if sourcemap.IsDataURL(mapURL) {
		data, err := sourcemap.DecodeDataURL(mapURL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode inline source map: %w", err)
		}
		return data, dir, nil
	}

	if !sourcemap.IsRequestable(mapURL) {
		host.EmitWarning(fmt.Errorf("source map URL '%s' is not requestable", mapURL))
		return nil, "", nil
	}

	mapPath, err := host.Resolve(ctx, dir, sourcemap.ToRequest(mapURL))
	if err != nil {
		return nil, "", fmt.Errorf("%w '%s': %w", ErrMapNotFound, mapURL, err)
	}
	host.AddDependency(mapPath)

	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read source map %s: %w", mapPath, err)
	}
	return data, filepath.Dir(mapPath), nil
}

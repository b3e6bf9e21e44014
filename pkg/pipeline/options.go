package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/cache"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/metrics"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/pathname"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/source"
)

// DefaultSourceDir prefixes output names when no source directory is set.
const DefaultSourceDir = "src"

// Options is the resolved configuration for one run. It is not modified
// by the pipeline.
type Options struct {
	// Exclude skips a source, unmodified and without content, when any
	// predicate matches the original source string.
	Exclude filter.List

	// CacheDir holds fetched remote sources. Empty disables caching.
	CacheDir string

	// PreFetchTransform rewrites a source before it is fetched. An empty
	// result excludes the source. Nil keeps sources unchanged.
	PreFetchTransform func(source string) string

	// PostFetchTransform names a fetched source. It may delegate to the
	// default naming through its fallback argument. Nil uses the default.
	PostFetchTransform pathname.Transform

	// SourceDir prefixes names produced by the default naming.
	SourceDir string

	// IncludeContent selects sources whose content is embedded in the map.
	IncludeContent filter.Predicate

	// EmitContent selects sources whose content is emitted as a file.
	EmitContent filter.Predicate

	// Concurrency caps the number of entries processed at once. Zero or
	// less is unbounded.
	Concurrency int

	// FetchTimeout bounds each remote fetch. Zero waits indefinitely.
	FetchTimeout time.Duration

	// Transports serves remote schemes. Nil uses source.DefaultRegistry.
	Transports *source.Registry

	Logger  *zerolog.Logger
	Metrics *metrics.Recorder
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Exclude:        filter.CompileList(nil, filter.Never),
		CacheDir:       cache.DefaultDir,
		SourceDir:      DefaultSourceDir,
		IncludeContent: filter.Always,
		EmitContent:    filter.Always,
	}
}

func (o Options) withDefaults() Options {
	if o.Exclude == nil {
		o.Exclude = filter.CompileList(nil, filter.Never)
	}
	if o.PreFetchTransform == nil {
		o.PreFetchTransform = func(s string) string { return s }
	}
	if o.IncludeContent == nil {
		o.IncludeContent = filter.Always
	}
	if o.EmitContent == nil {
		o.EmitContent = filter.Always
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// Package pipeline resolves the sources of a source map.
//
// For every entry of the sources array the pipeline decides whether the
// entry is excluded, where its content comes from (the map itself, the disk
// cache, the network or the local filesystem), what it is called in the
// output, and whether its content is embedded in the map, emitted as a file,
// or both. Entries are processed concurrently; failures affecting one entry
// are reported as warnings and never abort the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/cache"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/metrics"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/pathname"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/source"
)

// Host is the build tool the pipeline runs in. Its methods are called from
// several goroutines at once.
type Host interface {
	source.Warner
	source.Resolver

	// EmitFile writes content as a build output named name.
	EmitFile(name string, content []byte) error

	// RootContext is the directory output names are made relative to.
	RootContext() string
}

// Resolved is the outcome for one entry. A nil SourceContent leaves the
// content to be looked up lazily by consumers of the map.
type Resolved struct {
	Source        string
	SourceContent *string
}

// Pipeline resolves sources for one set of options.
type Pipeline struct {
	opts    Options
	host    Host
	cache   *cache.Store
	remote  *source.Remote
	local   *source.Local
	name    pathname.NameFunc
	log     *zerolog.Logger
	metrics *metrics.Recorder
}

// New creates a pipeline running inside host.
func New(opts Options, host Host) *Pipeline {
	opts = opts.withDefaults()
	p := &Pipeline{
		opts:    opts,
		host:    host,
		cache:   cache.New(opts.CacheDir),
		name:    pathname.Compose(opts.PostFetchTransform, opts.SourceDir),
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	w := source.WarnFunc(p.warn)
	p.remote = source.NewRemote(opts.Transports, w, opts.FetchTimeout)
	p.local = source.NewLocal(host, w)
	return p
}

// Run resolves every source. The result has one entry per source, in the
// order of sources, however fetches complete. sourcesContent may be nil or
// shorter than sources.
func (p *Pipeline) Run(ctx context.Context, sources []string, sourcesContent []*string, sourceRoot string) []Resolved {
	results := make([]Resolved, len(sources))

	var g errgroup.Group
	if p.opts.Concurrency > 0 {
		g.SetLimit(p.opts.Concurrency)
	}

	for i, src := range sources {
		var existing *string
		if i < len(sourcesContent) {
			existing = sourcesContent[i]
		}
		g.Go(func() error {
			results[i] = p.resolve(ctx, src, existing, sourceRoot)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (p *Pipeline) resolve(ctx context.Context, original string, existing *string, sourceRoot string) Resolved {
	if p.opts.Exclude.Any(original) {
		p.metrics.Source(metrics.OutcomeExcluded)
		return Resolved{Source: original}
	}

	src := p.opts.PreFetchTransform(original)
	if src == "" {
		p.metrics.Source(metrics.OutcomeExcluded)
		return Resolved{Source: original}
	}

	include := p.opts.IncludeContent(src)
	emit := p.opts.EmitContent(src)
	u := parseURL(src)

	var content string
	switch {
	case existing != nil && *existing != "":
		content = *existing
		p.metrics.Source(metrics.OutcomeEmbedded)
	case !include && !emit:
		p.metrics.Source(metrics.OutcomeSkipped)
	default:
		var ok bool
		if u != nil {
			content, ok = p.fetchRemote(ctx, u)
		} else {
			content, ok = p.fetchLocal(ctx, src, sourceRoot)
		}
		if ok {
			p.metrics.Source(metrics.OutcomeFetched)
		} else {
			p.metrics.Source(metrics.OutcomeFailed)
		}
	}

	var target pathname.Target
	if u != nil {
		target = pathname.Remote(u)
	} else {
		target = pathname.Local(p.relative(sourceRoot, src))
	}
	name := p.name(target)

	if emit {
		p.emitFile(name, content, src, sourceRoot)
	}

	if !include || content == "" {
		return Resolved{Source: name}
	}
	return Resolved{Source: name, SourceContent: &content}
}

// fetchRemote reads u from the cache or the network, populating the cache
// after a successful network fetch.
func (p *Pipeline) fetchRemote(ctx context.Context, u *url.URL) (string, bool) {
	cachePath, cached := p.cache.Path(u)
	if cached && p.cache.CanRead(cachePath) {
		start := time.Now()
		content, err := p.cache.Read(cachePath)
		if err == nil {
			p.metrics.Fetch(metrics.KindCache, start)
			p.log.Debug().Str("url", u.String()).Str("path", cachePath).Msg("cache hit")
			return content, true
		}
		p.warn(err)
	}

	start := time.Now()
	p.log.Debug().Str("url", u.String()).Msg("fetching remote source")
	content, err := p.remote.Fetch(ctx, u)
	if err != nil {
		// Unsupported protocols were already reported by the fetcher.
		if !errors.Is(err, source.ErrUnsupportedProtocol) {
			p.warn(err)
		}
		return "", false
	}
	p.metrics.Fetch(metrics.KindRemote, start)

	if cached {
		if err := p.cache.Write(cachePath, content); err != nil {
			p.warn(err)
		} else {
			p.metrics.CacheWrite()
			p.log.Debug().Str("url", u.String()).Str("path", cachePath).Msg("cache write")
		}
	}
	return content, true
}

func (p *Pipeline) fetchLocal(ctx context.Context, src, sourceRoot string) (string, bool) {
	start := time.Now()
	content, ok := p.local.Fetch(ctx, src, sourceRoot)
	if ok {
		p.metrics.Fetch(metrics.KindLocal, start)
	}
	return content, ok
}

func (p *Pipeline) emitFile(name, content, src, sourceRoot string) {
	if content == "" {
		p.warn(fmt.Errorf("source content was empty for %s in %s", src, sourceRoot))
		return
	}
	if err := p.host.EmitFile(name, []byte(content)); err != nil {
		p.warn(fmt.Errorf("failed to emit %s: %w", name, err))
		return
	}
	p.metrics.Emitted()
}

// relative returns src joined to sourceRoot, relative to the host's root
// context when possible.
func (p *Pipeline) relative(sourceRoot, src string) string {
	joined := filepath.Join(sourceRoot, filepath.FromSlash(src))
	root := p.host.RootContext()
	if root == "" {
		return joined
	}
	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return joined
	}
	return rel
}

func (p *Pipeline) warn(err error) {
	p.metrics.Warning()
	p.log.Debug().Err(err).Msg("source warning")
	p.host.EmitWarning(err)
}

// parseURL returns src as a URL when it is absolute. Single letter schemes
// are Windows drive letters, not URLs.
func parseURL(src string) *url.URL {
	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() || len(u.Scheme) < 2 {
		return nil
	}
	return u
}

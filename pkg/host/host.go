// Package host runs the loader against the local filesystem.
//
// An FS collects warnings, dependencies and emitted files for a whole run.
// Each loaded file gets its own Resource view, which is what the loader sees.
package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/source"
)

// ErrAborted is returned by EmitFile after the user aborted overwriting.
var ErrAborted = errors.New("aborted by user")

// Decision is the answer to an overwrite prompt.
type Decision int

const (
	Yes Decision = iota
	No
	YesToAll
	NoToAll
	Abort
)

// ConfirmFunc is asked before an existing output file is replaced.
type ConfirmFunc func(path string) (Decision, error)

// Options configures an FS.
type Options struct {
	// Root is the root context output names are relative to.
	Root string

	// OutDir receives emitted files. Empty disables writing, emitted names
	// are still recorded.
	OutDir string

	Resolver source.Resolver

	// SourceMaps reports whether source maps are produced. When false every
	// file is passed through.
	SourceMaps bool

	// Confirm is asked before overwriting an existing file. Nil overwrites.
	Confirm ConfirmFunc

	Logger *zerolog.Logger
}

// Warning is a non-fatal problem reported while loading Resource.
type Warning struct {
	Resource string
	Err      error
}

func (w Warning) String() string {
	if w.Resource == "" {
		return w.Err.Error()
	}
	return fmt.Sprintf("%s: %v", w.Resource, w.Err)
}

// FS is a host backed by the local filesystem. It is safe for concurrent use.
type FS struct {
	opts Options
	log  *zerolog.Logger

	mu       sync.Mutex
	warnings []Warning
	deps     map[string]struct{}
	emitted  map[string]struct{}

	confirmMu sync.Mutex
	always    *bool
	aborted   bool
}

// New creates a filesystem host.
func New(opts Options) (*FS, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		opts.Root = wd
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", opts.Root, err)
	}
	opts.Root = root

	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	return &FS{
		opts:    opts,
		log:     log,
		deps:    make(map[string]struct{}),
		emitted: make(map[string]struct{}),
	}, nil
}

// For returns the host view for loading the file at path.
func (h *FS) For(path string) (*Resource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &Resource{FS: h, path: abs}, nil
}

// RootContext returns the absolute root directory.
func (h *FS) RootContext() string {
	return h.opts.Root
}

// Resolve locates request from the directory base.
func (h *FS) Resolve(ctx context.Context, base, request string) (string, error) {
	return h.opts.Resolver.Resolve(ctx, base, request)
}

// OutDir returns the output directory.
func (h *FS) OutDir() string {
	return h.opts.OutDir
}

// WriteFile writes an output file under OutDir, asking Confirm first when
// it already exists. It reports false when the file was left unchanged.
func (h *FS) WriteFile(name string, content []byte) (bool, error) {
	if h.opts.OutDir == "" {
		return false, nil
	}

	p := filepath.Join(h.opts.OutDir, filepath.FromSlash(name))
	if _, err := os.Stat(p); err == nil {
		ok, err := h.confirm(p)
		if err != nil {
			return false, err
		}
		if !ok {
			h.log.Info().Str("path", p).Msg("kept existing file")
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", p, err)
	}
	h.log.Debug().Str("path", p).Int("bytes", len(content)).Msg("wrote file")
	return true, nil
}

func (h *FS) confirm(path string) (bool, error) {
	if h.opts.Confirm == nil {
		return true, nil
	}

	// Prompts are shown one at a time.
	h.confirmMu.Lock()
	defer h.confirmMu.Unlock()

	if h.aborted {
		return false, ErrAborted
	}
	if h.always != nil {
		return *h.always, nil
	}

	d, err := h.opts.Confirm(path)
	if err != nil {
		h.aborted = true
		return false, fmt.Errorf("failed to confirm overwrite of %s: %w", path, err)
	}

	switch d {
	case Yes:
		return true, nil
	case No:
		return false, nil
	case YesToAll, NoToAll:
		v := d == YesToAll
		h.always = &v
		return v, nil
	default:
		h.aborted = true
		return false, ErrAborted
	}
}

func (h *FS) warn(resource string, err error) {
	h.mu.Lock()
	h.warnings = append(h.warnings, Warning{Resource: resource, Err: err})
	h.mu.Unlock()
	h.log.Warn().Str("resource", resource).Err(err).Msg("warning")
}

// Warnings returns all warnings in the order they were reported.
func (h *FS) Warnings() []Warning {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Warning(nil), h.warnings...)
}

// Dependencies returns the sorted set of files the outputs depend on.
func (h *FS) Dependencies() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sortedKeys(h.deps)
}

// Emitted returns the sorted names of all emitted sources.
func (h *FS) Emitted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sortedKeys(h.emitted)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resource is the host as seen while loading one file.
type Resource struct {
	*FS
	path string
}

// ResourcePath returns the absolute path of the file being loaded.
func (r *Resource) ResourcePath() string {
	return r.path
}

// SourceMapEnabled reports whether the run produces source maps.
func (r *Resource) SourceMapEnabled() bool {
	return r.opts.SourceMaps
}

// AddDependency records path as an input of the run.
func (r *Resource) AddDependency(path string) {
	r.mu.Lock()
	r.deps[path] = struct{}{}
	r.mu.Unlock()
}

// EmitWarning records a warning against this resource.
func (r *Resource) EmitWarning(err error) {
	r.warn(r.relative(), err)
}

// EmitFile writes an emitted source under the output directory.
func (r *Resource) EmitFile(name string, content []byte) error {
	clean := filepath.ToSlash(filepath.Clean(name))
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(name) {
		return fmt.Errorf("refusing to emit %s outside the output directory", name)
	}
	r.mu.Lock()
	r.emitted[clean] = struct{}{}
	r.mu.Unlock()
	_, err := r.WriteFile(name, content)
	return err
}

func (r *Resource) relative() string {
	rel, err := filepath.Rel(r.opts.Root, r.path)
	if err != nil {
		return r.path
	}
	return filepath.ToSlash(rel)
}

// Package resolve locates source files the way JavaScript bundlers do:
// relative and absolute paths, extension-less requests, directory index
// files and package lookups through node_modules.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned when a request cannot be located.
var ErrNotFound = errors.New("module not found")

// DefaultCacheSize bounds the number of memoized resolutions.
const DefaultCacheSize = 4096

// Options configures a Resolver.
type Options struct {
	// Extensions are appended to extension-less requests, in order.
	Extensions []string

	// MainFields are the package.json fields consulted for a package entry point.
	MainFields []string

	// ModulesDir is the directory searched for packages.
	ModulesDir string

	// CacheSize bounds memoized resolutions. Zero uses DefaultCacheSize.
	CacheSize int
}

// DefaultOptions returns the options used by New when fields are empty.
func DefaultOptions() Options {
	return Options{
		Extensions: []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx", ".json"},
		MainFields: []string{"module", "main"},
		ModulesDir: "node_modules",
		CacheSize:  DefaultCacheSize,
	}
}

// Resolver resolves requests against the filesystem. It is safe for
// concurrent use.
type Resolver struct {
	opts Options
	memo *lru.Cache[string, string]
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	def := DefaultOptions()
	if opts.Extensions == nil {
		opts.Extensions = def.Extensions
	}
	if opts.MainFields == nil {
		opts.MainFields = def.MainFields
	}
	if opts.ModulesDir == "" {
		opts.ModulesDir = def.ModulesDir
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}

	memo, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver cache: %w", err)
	}
	return &Resolver{opts: opts, memo: memo}, nil
}

// Resolve returns the file request refers to, relative to the directory base.
// Bare requests are tried as a path under base before package lookup.
func (r *Resolver) Resolve(ctx context.Context, base, request string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := base + "\x00" + request
	if p, ok := r.memo.Get(key); ok {
		return p, nil
	}

	p, ok := r.resolve(base, request)
	if !ok {
		return "", fmt.Errorf("can't resolve '%s' in '%s': %w", request, base, ErrNotFound)
	}

	r.memo.Add(key, p)
	return p, nil
}

func (r *Resolver) resolve(base, request string) (string, bool) {
	request = stripQuery(request)
	if request == "" {
		return "", false
	}

	native := filepath.FromSlash(request)
	if filepath.IsAbs(native) {
		return r.loadPath(filepath.Clean(native))
	}

	joined := filepath.Join(base, native)
	if isRelative(request) {
		return r.loadPath(joined)
	}

	if p, ok := r.loadPath(joined); ok {
		return p, true
	}
	return r.loadPackage(base, native)
}

// loadPath tries p as a file and then as a directory.
func (r *Resolver) loadPath(p string) (string, bool) {
	if f, ok := r.loadFile(p); ok {
		return f, true
	}
	return r.loadDir(p)
}

func (r *Resolver) loadFile(p string) (string, bool) {
	if isFile(p) {
		return p, true
	}
	for _, ext := range r.opts.Extensions {
		if isFile(p + ext) {
			return p + ext, true
		}
	}
	return "", false
}

func (r *Resolver) loadDir(dir string) (string, bool) {
	if !isDir(dir) {
		return "", false
	}
	if main, ok := r.packageMain(dir); ok {
		if p, ok := r.loadFile(filepath.Join(dir, main)); ok {
			return p, true
		}
		if p, ok := r.loadFile(filepath.Join(dir, main, "index")); ok {
			return p, true
		}
	}
	return r.loadFile(filepath.Join(dir, "index"))
}

// loadPackage walks up from base looking for request in each modules directory.
func (r *Resolver) loadPackage(base, request string) (string, bool) {
	dir := filepath.Clean(base)
	for {
		if filepath.Base(dir) != r.opts.ModulesDir {
			if p, ok := r.loadPath(filepath.Join(dir, r.opts.ModulesDir, request)); ok {
				return p, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) packageMain(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", false
	}
	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", false
	}
	for _, field := range r.opts.MainFields {
		if v, ok := pkg[field].(string); ok && v != "" {
			return filepath.FromSlash(v), true
		}
	}
	return "", false
}

func isRelative(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../") ||
		strings.HasPrefix(request, `.\`) || strings.HasPrefix(request, `..\`)
}

func stripQuery(request string) string {
	if i := strings.IndexAny(request, "?#"); i >= 0 {
		return request[:i]
	}
	return request
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

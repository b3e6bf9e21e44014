// Package cache persists fetched remote sources on disk.
//
// Layout:
//
//	{Dir}/
//	  {hostname}/
//	    {pathname...}
//
// Entries are never evicted or invalidated. Writing is the only mutation.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDir is the cache directory used when none is configured.
const DefaultDir = ".remote-source-map-loader"

// indexName is used for URLs whose path names a directory.
const indexName = "index"

// Store maps remote URLs to files below a directory. A Store with an empty
// directory is disabled.
type Store struct {
	dir string
}

// Entry describes a cached file.
type Entry struct {
	// Key is hostname/pathname of the cached URL.
	Key string

	// Path is the file on disk.
	Path string

	Size    int64
	ModTime time.Time
}

// New creates a Store rooted at dir. An empty dir disables caching.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory, empty when disabled.
func (s *Store) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Enabled reports whether caching is on.
func (s *Store) Enabled() bool {
	return s.Dir() != ""
}

// Key returns hostname/pathname for u. The pathname is cleaned as an
// absolute path so it cannot climb above the hostname directory.
func Key(u *url.URL) string {
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += indexName
	}
	return u.Hostname() + path.Clean("/"+p)
}

// Path returns the cache file for u. ok is false when caching is disabled.
func (s *Store) Path(u *url.URL) (p string, ok bool) {
	if !s.Enabled() {
		return "", false
	}
	return filepath.Join(s.dir, filepath.FromSlash(Key(u))), true
}

// CanRead reports whether p exists and is accessible. Errors count as a miss.
func (s *Store) CanRead(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Read returns the cached content at p.
func (s *Store) Read(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read cache entry: %w", err)
	}
	return string(data), nil
}

// Write stores content at p, creating parent directories. The file is
// written to a temporary name first and renamed into place so readers never
// observe a partial entry. Concurrent writers of the same key race and the
// last rename wins.
func (s *Store) Write(p string, content string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	tmp := f.Name()

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Walk calls fn for every cached file in lexical order. A missing cache
// directory yields no entries.
func (s *Store) Walk(fn func(Entry) error) error {
	if !s.Enabled() {
		return nil
	}
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		return fn(Entry{
			Key:     filepath.ToSlash(rel),
			Path:    p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

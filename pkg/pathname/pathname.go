// Package pathname turns fetched source locations into output relative names.
package pathname

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Target is the location a source was fetched from. URL is set for remote
// sources, Path for local ones.
type Target struct {
	Path string
	URL  *url.URL
}

// Local returns a Target for a local path.
func Local(p string) Target {
	return Target{Path: p}
}

// Remote returns a Target for a remote URL.
func Remote(u *url.URL) Target {
	return Target{URL: u}
}

// IsRemote reports whether t refers to a URL.
func (t Target) IsRemote() bool {
	return t.URL != nil
}

func (t Target) String() string {
	if t.URL != nil {
		return t.URL.String()
	}
	return t.Path
}

// NameFunc maps a Target to the name written back into the source map.
type NameFunc func(Target) string

// Transform is a user supplied naming hook. It receives the default naming
// function and may call it for targets it does not handle itself.
type Transform func(t Target, fallback NameFunc) string

// Default returns the default naming function. Local paths are normalized
// and stripped of ".." segments, remote URLs become hostname + pathname.
// Both are prefixed with sourceDir when it is not empty.
func Default(sourceDir string) NameFunc {
	sourceDir = filepath.ToSlash(sourceDir)
	return func(t Target) string {
		var rel string
		if t.URL != nil {
			rel = path.Join(t.URL.Hostname(), path.Clean("/"+t.URL.Path))
		} else {
			rel = StripTraversal(t.Path)
		}
		if sourceDir == "" {
			return rel
		}
		return path.Join(sourceDir, rel)
	}
}

// Compose wraps transform around the default naming for sourceDir. A nil
// transform yields the default itself.
func Compose(transform Transform, sourceDir string) NameFunc {
	def := Default(sourceDir)
	if transform == nil {
		return def
	}
	return func(t Target) string {
		return transform(t, def)
	}
}

// StripTraversal normalizes p to a slash separated relative path without
// any ".." segments, volume name or leading root.
func StripTraversal(p string) string {
	p = strings.TrimPrefix(p, filepath.VolumeName(p))
	p = path.Clean(filepath.ToSlash(p))

	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		if part == ".." || part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}

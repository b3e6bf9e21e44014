// Package source fetches the original contents listed in a source map.
//
// Remote sources are fetched through a Transport chosen by URL scheme from a
// Registry. Local sources are located through a Resolver and read from disk.
// Neither fetcher fails a run: problems are reported to a Warner.
package source

import (
	"context"
	"errors"
	"io"
	"net/url"
)

// ErrUnsupportedProtocol is returned for URLs whose scheme has no transport.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// Warner receives non-fatal problems.
type Warner interface {
	EmitWarning(err error)
}

// WarnFunc adapts a function to Warner.
type WarnFunc func(err error)

// EmitWarning calls f(err).
func (f WarnFunc) EmitWarning(err error) {
	f(err)
}

// Resolver locates request relative to the directory base and returns a
// filesystem path.
type Resolver interface {
	Resolve(ctx context.Context, base, request string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, base, request string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, base, request string) (string, error) {
	return f(ctx, base, request)
}

// Transport opens remote resources for one URL scheme.
type Transport interface {
	// Name returns the scheme served, without the trailing colon (e.g., "https")
	Name() string

	// Description returns a human-readable description of the transport
	Description() string

	// Secure reports whether the transport protects data in transit.
	// Fetching over an insecure transport emits a warning.
	Secure() bool

	// Open issues a single request for u and returns the response body.
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// TransportFactory creates new Transport instances.
type TransportFactory func() Transport

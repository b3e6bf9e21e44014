package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Remote fetches sources addressed by absolute URL.
type Remote struct {
	transports *Registry
	warn       Warner
	timeout    time.Duration
}

// NewRemote creates a remote fetcher. A nil registry uses DefaultRegistry.
// A zero timeout waits indefinitely.
func NewRemote(transports *Registry, warn Warner, timeout time.Duration) *Remote {
	if transports == nil {
		transports = DefaultRegistry
	}
	if warn == nil {
		warn = WarnFunc(func(error) {})
	}
	return &Remote{transports: transports, warn: warn, timeout: timeout}
}

// Fetch downloads u and returns its body as UTF-8 text.
//
// Unsupported schemes emit a warning and return ErrUnsupportedProtocol.
// Insecure transports emit a warning and fetch anyway. Transport errors,
// including a connection dropped mid-body, are returned for this URL only.
func (r *Remote) Fetch(ctx context.Context, u *url.URL) (string, error) {
	t, err := r.transports.Get(u.Scheme)
	if err != nil {
		r.warn.EmitWarning(err)
		return "", err
	}

	if !t.Secure() {
		r.warn.EmitWarning(fmt.Errorf("insecure %s protocol used for source '%s'", strings.ToUpper(t.Name()), u))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body, err := t.Open(ctx, u)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer body.Close()

	return readText(body, u.String())
}

// readText drains r, replacing invalid UTF-8 sequences.
func readText(r io.Reader, name string) (string, error) {
	var b strings.Builder
	if _, err := io.Copy(&b, r); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return strings.ToValidUTF8(b.String(), "�"), nil
}

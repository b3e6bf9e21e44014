// Package httpsource provides the http and https transports.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/source"
)

func init() {
	// Register the transports with the default registry
	source.Register("https", NewSecure)
	source.Register("http", NewInsecure)
}

var (
	clientOnce   sync.Once
	sharedClient *http.Client
)

// defaultClient returns a pooled client shared by all registered transports.
// Redirects are not followed.
func defaultClient() *http.Client {
	clientOnce.Do(func() {
		sharedClient = cleanhttp.DefaultPooledClient()
		sharedClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	})
	return sharedClient
}

// Transport issues a single GET per source.
type Transport struct {
	scheme string
	secure bool
	client *http.Client
}

// New creates a transport for scheme using client. A nil client uses the
// shared pooled client.
func New(scheme string, secure bool, client *http.Client) *Transport {
	if client == nil {
		client = defaultClient()
	}
	return &Transport{scheme: scheme, secure: secure, client: client}
}

// NewSecure creates the https transport.
func NewSecure() source.Transport {
	return New("https", true, nil)
}

// NewInsecure creates the http transport.
func NewInsecure() source.Transport {
	return New("http", false, nil)
}

// Name returns the scheme served.
func (t *Transport) Name() string {
	return t.scheme
}

// Description returns a human-readable description.
func (t *Transport) Description() string {
	if t.secure {
		return "HTTP over TLS"
	}
	return "plain HTTP (insecure)"
}

// Secure reports whether the transport uses TLS.
func (t *Transport) Secure() bool {
	return t.secure
}

// Open performs a GET for u. Responses outside the 2xx range are errors.
func (t *Transport) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, fmt.Errorf("unsuccessful status code %d", resp.StatusCode)
	}

	return resp.Body, nil
}

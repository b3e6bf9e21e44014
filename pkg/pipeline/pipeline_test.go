package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/metrics"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/pathname"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/resolve"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/source"
	"github.com/GlueOps/remote-sourcemap-loader/pkg/source/httpsource"
)

type testHost struct {
	*resolve.Resolver
	root string

	mu       sync.Mutex
	warnings []string
	emitted  map[string]string
	resolves int
}

func newTestHost(t *testing.T, root string) *testHost {
	t.Helper()
	r, err := resolve.New(resolve.Options{})
	require.NoError(t, err)
	return &testHost{Resolver: r, root: root, emitted: map[string]string{}}
}

func (h *testHost) Resolve(ctx context.Context, base, request string) (string, error) {
	h.mu.Lock()
	h.resolves++
	h.mu.Unlock()
	return h.Resolver.Resolve(ctx, base, request)
}

func (h *testHost) EmitWarning(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warnings = append(h.warnings, err.Error())
}

func (h *testHost) EmitFile(name string, content []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted[name] = string(content)
	return nil
}

func (h *testHost) RootContext() string {
	return h.root
}

// remoteServer serves path -> body and counts GETs per path.
type remoteServer struct {
	*httptest.Server
	mu   sync.Mutex
	gets map[string]int
}

func newRemoteServer(t *testing.T, files map[string]string, delay func(path string) time.Duration) *remoteServer {
	t.Helper()
	s := &remoteServer{gets: map[string]int{}}
	s.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.gets[r.URL.Path]++
		s.mu.Unlock()
		if delay != nil {
			time.Sleep(delay(r.URL.Path))
		}
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *remoteServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

func (s *remoteServer) transports() *source.Registry {
	reg := source.NewRegistry()
	client := s.Client()
	reg.Register("https", func() source.Transport { return httpsource.New("https", true, client) })
	return reg
}

func str(s string) *string { return &s }

func contents(rs []Resolved) []*string {
	out := make([]*string, len(rs))
	for i, r := range rs {
		out[i] = r.SourceContent
	}
	return out
}

func names(rs []Resolved) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Source
	}
	return out
}

func TestRunPreservesOrder(t *testing.T) {
	const n = 40
	files := map[string]string{}
	sources := make([]string, n)
	srv := newRemoteServer(t, files, func(string) time.Duration {
		return time.Duration(rand.Intn(15)) * time.Millisecond
	})
	for i := range n {
		p := fmt.Sprintf("/f%02d.js", i)
		files[p] = fmt.Sprintf("content %d", i)
		sources[i] = srv.URL + p
	}

	host := newTestHost(t, t.TempDir())
	opts := DefaultOptions()
	opts.CacheDir = ""
	opts.Transports = srv.transports()

	got := New(opts, host).Run(context.Background(), sources, nil, host.root)
	require.Len(t, got, n)
	for i := range n {
		require.NotNil(t, got[i].SourceContent)
		assert.Equal(t, fmt.Sprintf("content %d", i), *got[i].SourceContent)
		assert.True(t, strings.HasSuffix(got[i].Source, fmt.Sprintf("/f%02d.js", i)))
	}
	assert.Empty(t, host.warnings)
}

func TestRunConcurrencyLimit(t *testing.T) {
	var inflight, peak atomic.Int32
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inflight.Add(-1)
		_, _ = w.Write([]byte("x"))
	}))
	t.Cleanup(ts.Close)

	reg := source.NewRegistry()
	reg.Register("https", func() source.Transport { return httpsource.New("https", true, ts.Client()) })

	sources := make([]string, 12)
	for i := range sources {
		sources[i] = fmt.Sprintf("%s/%d.js", ts.URL, i)
	}

	host := newTestHost(t, t.TempDir())
	opts := DefaultOptions()
	opts.CacheDir = ""
	opts.Concurrency = 2
	opts.Transports = reg

	got := New(opts, host).Run(context.Background(), sources, nil, host.root)
	require.Len(t, got, 12)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(0), inflight.Load())
}

func TestRunExistingContentSkipsFetch(t *testing.T) {
	root := t.TempDir()
	host := newTestHost(t, root)

	got := New(DefaultOptions(), host).Run(context.Background(),
		[]string{"a.js"}, []*string{str("inline")}, root)

	require.Len(t, got, 1)
	assert.Equal(t, "src/a.js", got[0].Source)
	assert.Equal(t, "inline", *got[0].SourceContent)
	assert.Zero(t, host.resolves, "no fetch for embedded content")
	assert.Equal(t, map[string]string{"src/a.js": "inline"}, host.emitted)
}

func TestRunRemoteCaching(t *testing.T) {
	srv := newRemoteServer(t, map[string]string{"/lib/a.js": "remote a"}, nil)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	opts := DefaultOptions()
	opts.CacheDir = cacheDir
	opts.Transports = srv.transports()
	opts.Metrics = metrics.New()

	host := newTestHost(t, t.TempDir())
	sources := []string{srv.URL + "/lib/a.js"}

	first := New(opts, host).Run(context.Background(), sources, nil, host.root)
	assert.Equal(t, 1, srv.count("/lib/a.js"))

	cached, err := os.ReadFile(filepath.Join(cacheDir, "127.0.0.1", "lib", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "remote a", string(cached))

	second := New(opts, host).Run(context.Background(), sources, nil, host.root)
	assert.Equal(t, 1, srv.count("/lib/a.js"), "second run is served from the cache")
	assert.Equal(t, contents(first), contents(second))
	assert.Equal(t, "src/127.0.0.1/lib/a.js", second[0].Source)
}

func TestRunCacheDisabled(t *testing.T) {
	srv := newRemoteServer(t, map[string]string{"/a.js": "a"}, nil)
	opts := DefaultOptions()
	opts.CacheDir = ""
	opts.Transports = srv.transports()

	host := newTestHost(t, t.TempDir())
	p := New(opts, host)
	p.Run(context.Background(), []string{srv.URL + "/a.js"}, nil, host.root)
	p.Run(context.Background(), []string{srv.URL + "/a.js"}, nil, host.root)
	assert.Equal(t, 2, srv.count("/a.js"))
}

func TestRunExclusion(t *testing.T) {
	srv := newRemoteServer(t, map[string]string{"/a.js": "a"}, nil)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	opts := DefaultOptions()
	opts.CacheDir = cacheDir
	opts.Transports = srv.transports()
	opts.Exclude = filter.CompileList([]filter.Spec{
		filter.Equals("local.js"),
		filter.Func(func(s string) bool { return strings.HasPrefix(s, "https://") }),
	}, filter.Never)

	host := newTestHost(t, t.TempDir())
	got := New(opts, host).Run(context.Background(),
		[]string{srv.URL + "/a.js", "local.js"}, []*string{nil, str("kept?")}, host.root)

	assert.Equal(t, []Resolved{{Source: srv.URL + "/a.js"}, {Source: "local.js"}}, got)
	assert.Zero(t, srv.count("/a.js"))
	assert.Zero(t, host.resolves)
	assert.Empty(t, host.emitted)
	_, err := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err), "excluded sources never touch the cache")
}

func TestRunPreFetchTransform(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.js"), []byte("real"), 0644))

	opts := DefaultOptions()
	opts.PreFetchTransform = func(s string) string {
		switch s {
		case "webpack:///real.js":
			return "real.js"
		case "drop.js":
			return ""
		}
		return s
	}

	host := newTestHost(t, root)
	got := New(opts, host).Run(context.Background(), []string{"webpack:///real.js", "drop.js"}, nil, root)

	require.Len(t, got, 2)
	assert.Equal(t, "src/real.js", got[0].Source)
	assert.Equal(t, "real", *got[0].SourceContent)
	assert.Equal(t, Resolved{Source: "drop.js"}, got[1])
	assert.Empty(t, host.warnings)
}

func TestRunUnsupportedProtocol(t *testing.T) {
	host := newTestHost(t, t.TempDir())
	opts := DefaultOptions()
	opts.CacheDir = filepath.Join(t.TempDir(), "cache")

	got := New(opts, host).Run(context.Background(), []string{"ftp://host/file.js"}, nil, host.root)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].SourceContent)
	assert.Equal(t, "src/host/file.js", got[0].Source)
	assert.Equal(t, []string{
		"unsupported protocol 'ftp:'",
		"source content was empty for ftp://host/file.js in " + host.root,
	}, host.warnings)
}

func TestRunLocalFailureIsNonFatal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.js"), []byte("ok"), 0644))

	opts := DefaultOptions()
	opts.EmitContent = filter.Never
	host := newTestHost(t, root)

	got := New(opts, host).Run(context.Background(), []string{"missing.js", "ok.js"}, nil, root)

	require.Len(t, got, 2)
	assert.Nil(t, got[0].SourceContent)
	assert.Equal(t, "ok", *got[1].SourceContent)
	require.Len(t, host.warnings, 1)
	assert.Contains(t, host.warnings[0], "can't resolve 'missing.js'")
}

func TestRunEmptyContentEmission(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.js"), nil, 0644))

	host := newTestHost(t, root)
	got := New(DefaultOptions(), host).Run(context.Background(), []string{"empty.js"}, nil, root)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].SourceContent)
	assert.Empty(t, host.emitted)
	assert.Equal(t, []string{"source content was empty for empty.js in " + root}, host.warnings)
}

func TestRunIncludeAndEmitPredicates(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.js", "b.js", "c.js"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0644))
	}

	opts := DefaultOptions()
	opts.IncludeContent = filter.Compile(filter.Equals("a.js"), filter.Always)
	opts.EmitContent = filter.Compile(filter.Equals("b.js"), filter.Always)

	host := newTestHost(t, root)
	got := New(opts, host).Run(context.Background(), []string{"a.js", "b.js", "c.js"}, nil, root)

	assert.Equal(t, []string{"src/a.js", "src/b.js", "src/c.js"}, names(got))
	assert.Equal(t, "a.js", *got[0].SourceContent)
	assert.Nil(t, got[1].SourceContent)
	assert.Nil(t, got[2].SourceContent)
	assert.Equal(t, map[string]string{"src/b.js": "b.js"}, host.emitted)
	assert.Equal(t, 2, host.resolves, "c.js is neither included nor emitted and is not fetched")
}

func TestRunPostFetchTransform(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "maps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib.js"), []byte("lib"), 0644))

	opts := DefaultOptions()
	opts.SourceDir = "orig"
	opts.PostFetchTransform = func(t pathname.Target, fallback pathname.NameFunc) string {
		return "custom/" + fallback(t)
	}

	host := newTestHost(t, root)
	got := New(opts, host).Run(context.Background(), []string{"../lib.js"}, nil, filepath.Join(root, "maps"))

	require.Len(t, got, 1)
	assert.Equal(t, "custom/orig/lib.js", got[0].Source)
	assert.Equal(t, "lib", *got[0].SourceContent)
}

func TestRunTraversalIsStripped(t *testing.T) {
	outer := t.TempDir()
	root := filepath.Join(outer, "project")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outer, "secret.js"), []byte("s"), 0644))

	host := newTestHost(t, root)
	got := New(DefaultOptions(), host).Run(context.Background(), []string{"../secret.js"}, nil, root)

	require.Len(t, got, 1)
	assert.Equal(t, "src/secret.js", got[0].Source)
	assert.Contains(t, host.emitted, "src/secret.js")
}

func TestRunRemoteFailure(t *testing.T) {
	srv := newRemoteServer(t, map[string]string{}, nil)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	opts := DefaultOptions()
	opts.CacheDir = cacheDir
	opts.EmitContent = filter.Never
	opts.Transports = srv.transports()

	host := newTestHost(t, t.TempDir())
	got := New(opts, host).Run(context.Background(), []string{srv.URL + "/missing.js"}, nil, host.root)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].SourceContent)
	require.Len(t, host.warnings, 1)
	assert.Contains(t, host.warnings[0], "unsuccessful status code 404")
	_, err := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err), "failed fetches are not cached")
}

func TestParseURL(t *testing.T) {
	assert.NotNil(t, parseURL("https://example.com/a.js"))
	assert.NotNil(t, parseURL("webpack:///src/a.js"))
	assert.Nil(t, parseURL("src/a.js"))
	assert.Nil(t, parseURL("/abs/a.js"))
	assert.Nil(t, parseURL(`C:\src\a.js`))
}

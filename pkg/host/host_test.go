package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/resolve"
)

func newFS(t *testing.T, opts Options) *FS {
	t.Helper()
	if opts.Resolver == nil {
		r, err := resolve.New(resolve.DefaultOptions())
		require.NoError(t, err)
		opts.Resolver = r
	}
	h, err := New(opts)
	require.NoError(t, err)
	return h
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestNewRequiresResolver(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestResourceEmitFile(t *testing.T) {
	out := t.TempDir()
	h := newFS(t, Options{Root: t.TempDir(), OutDir: out})
	r, err := h.For("bundle.js")
	require.NoError(t, err)

	require.NoError(t, r.EmitFile("src/cdn.test/lib/a.js", []byte("A")))
	assert.Equal(t, "A", readFile(t, filepath.Join(out, "src", "cdn.test", "lib", "a.js")))
	assert.Equal(t, []string{"src/cdn.test/lib/a.js"}, h.Emitted())

	assert.Error(t, r.EmitFile("../escape.js", []byte("x")))
	assert.Error(t, r.EmitFile("..", []byte("x")))
	_, err = os.Stat(filepath.Join(filepath.Dir(out), "escape.js"))
	assert.True(t, os.IsNotExist(err))
}

func TestEmitWithoutOutDir(t *testing.T) {
	h := newFS(t, Options{Root: t.TempDir()})
	r, err := h.For("bundle.js")
	require.NoError(t, err)

	require.NoError(t, r.EmitFile("src/a.js", []byte("A")))
	assert.Equal(t, []string{"src/a.js"}, h.Emitted())
}

func TestWarningsAndDependencies(t *testing.T) {
	root := t.TempDir()
	h := newFS(t, Options{Root: root})
	r, err := h.For(filepath.Join(root, "dist", "bundle.js"))
	require.NoError(t, err)

	r.EmitWarning(errors.New("first"))
	r.AddDependency("/b.map")
	r.AddDependency("/a.map")
	r.AddDependency("/a.map")

	ws := h.Warnings()
	require.Len(t, ws, 1)
	assert.Equal(t, "dist/bundle.js: first", ws[0].String())
	assert.Equal(t, []string{"/a.map", "/b.map"}, h.Dependencies())
	assert.Equal(t, filepath.Join(root, "dist", "bundle.js"), r.ResourcePath())
	assert.Equal(t, root, r.RootContext())
}

func TestResolveDelegates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "map.json"), []byte("{}"), 0o644))
	h := newFS(t, Options{Root: root})

	p, err := h.Resolve(context.Background(), root, "./map")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "map.json"), p)
}

func TestOverwriteConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		answers   []Decision
		wantWrite []bool
		wantErr   []bool
		wantAsked int
	}{
		{
			name:      "yes then no",
			answers:   []Decision{Yes, No},
			wantWrite: []bool{true, false, false},
			wantErr:   []bool{false, false, true},
			wantAsked: 3,
		},
		{
			name:      "yes to all",
			answers:   []Decision{YesToAll},
			wantWrite: []bool{true, true, true},
			wantErr:   []bool{false, false, false},
			wantAsked: 1,
		},
		{
			name:      "no to all",
			answers:   []Decision{NoToAll},
			wantWrite: []bool{false, false, false},
			wantErr:   []bool{false, false, false},
			wantAsked: 1,
		},
		{
			name:      "abort sticks",
			answers:   []Decision{Abort},
			wantWrite: []bool{false, false, false},
			wantErr:   []bool{true, true, true},
			wantAsked: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			asked := 0
			h := newFS(t, Options{
				Root:   t.TempDir(),
				OutDir: out,
				Confirm: func(path string) (Decision, error) {
					defer func() { asked++ }()
					if asked < len(tt.answers) {
						return tt.answers[asked], nil
					}
					return Abort, nil
				},
			})

			names := []string{"a.js", "b.js", "c.js"}
			for _, n := range names {
				require.NoError(t, os.WriteFile(filepath.Join(out, n), []byte("old"), 0o644))
			}

			for i, n := range names {
				wrote, err := h.WriteFile(n, []byte("new"))
				assert.Equal(t, tt.wantWrite[i], wrote, n)
				if tt.wantErr[i] {
					assert.Error(t, err, n)
				} else {
					assert.NoError(t, err, n)
				}
				want := "old"
				if tt.wantWrite[i] {
					want = "new"
				}
				assert.Equal(t, want, readFile(t, filepath.Join(out, n)), n)
			}
			assert.Equal(t, tt.wantAsked, asked)
		})
	}
}

func TestNewFileSkipsConfirmation(t *testing.T) {
	out := t.TempDir()
	h := newFS(t, Options{
		Root:   t.TempDir(),
		OutDir: out,
		Confirm: func(string) (Decision, error) {
			t.Fatal("confirm called for a new file")
			return Abort, nil
		},
	})

	wrote, err := h.WriteFile("fresh.js", []byte("x"))
	require.NoError(t, err)
	assert.True(t, wrote)
}

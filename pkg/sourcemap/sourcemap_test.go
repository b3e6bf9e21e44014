package sourcemap

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestParse(t *testing.T) {
	m, err := Parse([]byte(`{
		"version": 3,
		"file": "out.js",
		"sourceRoot": "lib",
		"sources": ["a.js", null, "https://cdn.test/b.js"],
		"sourcesContent": ["A", null],
		"names": [],
		"mappings": "AAAA",
		"x_google_ignoreList": [1]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "lib", m.SourceRoot)
	assert.Equal(t, []string{"a.js", "", "https://cdn.test/b.js"}, m.Sources)
	if diff := cmp.Diff([]*string{strptr("A"), nil}, m.SourcesContent); diff != "" {
		t.Errorf("sourcesContent mismatch (-want +got):\n%s", diff)
	}

	raw, ok := m.Field("mappings")
	require.True(t, ok)
	assert.JSONEq(t, `"AAAA"`, string(raw))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
	}{
		{name: "missing sources", input: `{"version":3,"mappings":""}`, sentinel: ErrNoSources},
		{name: "null document", input: `null`, sentinel: ErrNoSources},
		{name: "invalid json", input: `{"sources":`},
		{name: "sources not an array", input: `{"sources":"a.js"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestMarshalPreservesFields(t *testing.T) {
	m, err := Parse([]byte(`{"version":3,"sources":["a.js","b.js"],"mappings":"AAAA","names":["x"],"x_custom":{"k":true}}`))
	require.NoError(t, err)

	m.Sources = []string{"src/a.js", "src/b.js"}
	m.SourcesContent = []*string{strptr("A")}

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 3,
		"sources": ["src/a.js", "src/b.js"],
		"sourcesContent": ["A", null],
		"mappings": "AAAA",
		"names": ["x"],
		"x_custom": {"k": true}
	}`, string(out))
}

func TestClone(t *testing.T) {
	m, err := Parse([]byte(`{"sources":["a.js"],"sourcesContent":["A"]}`))
	require.NoError(t, err)

	c := m.Clone()
	c.Sources[0] = "changed"
	*c.SourcesContent[0] = "changed"

	assert.Equal(t, "a.js", m.Sources[0])
	assert.Equal(t, "A", *m.SourcesContent[0])
}

func TestFindURL(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		found   bool
	}{
		{name: "line comment", content: "x;\n//# sourceMappingURL=map.json", want: "map.json", found: true},
		{name: "legacy at sign", content: "x;\n//@ sourceMappingURL=old.map\n", want: "old.map", found: true},
		{name: "block comment", content: "a{}\n/*# sourceMappingURL=style.css.map */", want: "style.css.map", found: true},
		{name: "last wins", content: "//# sourceMappingURL=first.map\nx;\n//# sourceMappingURL=second.map", want: "second.map", found: true},
		{name: "none", content: "x;\n// plain comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindURL(tt.content)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemoveURL(t *testing.T) {
	assert.Equal(t, "x;\n", RemoveURL("x;\n//# sourceMappingURL=map.json"))
	assert.Equal(t, "x;\n", RemoveURL("x;\n//# sourceMappingURL=map.json\n\n"))
	assert.Equal(t, "//# sourceMappingURL=a.map\nx;\n", RemoveURL("//# sourceMappingURL=a.map\nx;\n//# sourceMappingURL=b.map"))
	assert.Equal(t, "x;", RemoveURL("x;"))
}

func TestAppendURL(t *testing.T) {
	assert.Equal(t, "x;\n//# sourceMappingURL=out.js.map\n", AppendURL("x;", "out.js.map"))
	assert.Equal(t, "x;\n//# sourceMappingURL=out.js.map\n", AppendURL("x;\n", "out.js.map"))
}

func TestIsRequestable(t *testing.T) {
	tests := map[string]bool{
		"map.json":                 true,
		"./map.json":               true,
		"../maps/a.map":            true,
		"/abs/a.map":               true,
		"~pkg/a.map":               true,
		`C:\maps\a.map`:            true,
		"https://cdn.test/a.map":   false,
		"//cdn.test/a.map":         false,
		"data:application/json,{}": false,
		"#fragment":                false,
		"":                         false,
	}
	for input, want := range tests {
		assert.Equal(t, want, IsRequestable(input), input)
	}
}

func TestToRequest(t *testing.T) {
	tests := map[string]string{
		"map.json":   "./map.json",
		"./map.json": "./map.json",
		"../a.map":   "../a.map",
		"/abs/a.map": "/abs/a.map",
		"~pkg/a.map": "pkg/a.map",
		`C:\a\b.map`: `C:\a\b.map`,
		"maps/x.map": "./maps/x.map",
	}
	for input, want := range tests {
		assert.Equal(t, want, ToRequest(input), input)
	}
}

func TestDataURL(t *testing.T) {
	payload := []byte(`{"version":3,"sources":["a.js"]}`)

	got, err := DecodeDataURL(EncodeDataURL(payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	got, err = DecodeDataURL(`data:application/json,%7B%22sources%22%3A%5B%5D%7D`)
	require.NoError(t, err)
	assert.Equal(t, `{"sources":[]}`, string(got))

	_, err = DecodeDataURL("data:application/json;base64")
	assert.Error(t, err)

	_, err = DecodeDataURL("data:application/json;base64,!!!")
	assert.Error(t, err)

	_, err = DecodeDataURL("map.json")
	assert.Error(t, err)
}

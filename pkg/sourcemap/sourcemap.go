// Package sourcemap reads and writes source map files and the
// sourceMappingURL comments that reference them.
//
// Only the fields this module rewrites are modeled. Every other field of the
// map (version, mappings, names, file, extensions) is kept verbatim.
package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// ErrNoSources is returned for maps without a sources field.
var ErrNoSources = errors.New("source map has no sources field")

// SourceMap is a parsed source map. Sources[i] corresponds to
// SourcesContent[i]; a nil content is left for consumers to look up.
type SourceMap struct {
	SourceRoot     string
	Sources        []string
	SourcesContent []*string

	fields map[string]json.RawMessage
}

// Parse decodes a source map. The only validation is that sources exists.
func Parse(data []byte) (*SourceMap, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse source map: %w", err)
	}
	if fields == nil {
		return nil, ErrNoSources
	}

	raw, ok := fields["sources"]
	if !ok {
		return nil, ErrNoSources
	}

	m := &SourceMap{fields: fields}

	var sources []*string
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse source map sources: %w", err)
	}
	m.Sources = make([]string, len(sources))
	for i, s := range sources {
		if s != nil {
			m.Sources[i] = *s
		}
	}

	if raw, ok := fields["sourcesContent"]; ok {
		if err := json.Unmarshal(raw, &m.SourcesContent); err != nil {
			return nil, fmt.Errorf("failed to parse source map sourcesContent: %w", err)
		}
	}

	if raw, ok := fields["sourceRoot"]; ok {
		var root *string
		if err := json.Unmarshal(raw, &root); err != nil {
			return nil, fmt.Errorf("failed to parse source map sourceRoot: %w", err)
		}
		if root != nil {
			m.SourceRoot = *root
		}
	}

	return m, nil
}

// Field returns the raw value of a field that is not modeled, such as
// "mappings" or "version".
func (m *SourceMap) Field(name string) (json.RawMessage, bool) {
	v, ok := m.fields[name]
	return v, ok
}

// Clone returns a deep copy of m.
func (m *SourceMap) Clone() *SourceMap {
	c := &SourceMap{
		SourceRoot:     m.SourceRoot,
		Sources:        append([]string(nil), m.Sources...),
		SourcesContent: make([]*string, len(m.SourcesContent)),
		fields:         maps.Clone(m.fields),
	}
	for i, s := range m.SourcesContent {
		if s != nil {
			v := *s
			c.SourcesContent[i] = &v
		}
	}
	return c
}

// MarshalJSON encodes m with every preserved field. sourcesContent is
// written with one entry per source.
func (m *SourceMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.fields)+3)
	for k, v := range m.fields {
		out[k] = v
	}

	out["sources"] = m.Sources
	if m.Sources == nil {
		out["sources"] = []string{}
	}

	contents := make([]*string, len(m.Sources))
	copy(contents, m.SourcesContent)
	out["sourcesContent"] = contents

	if m.SourceRoot != "" {
		out["sourceRoot"] = m.SourceRoot
	} else {
		delete(out, "sourceRoot")
	}

	return json.Marshal(out)
}

package config

import (
	"fmt"

	"github.com/goccy/go-yaml"

	"github.com/GlueOps/remote-sourcemap-loader/pkg/filter"
)

// Filter is a filter value: a boolean, an exact string, {pattern: regex} or
// {glob: pattern}.
type Filter struct {
	spec filter.Spec
	raw  any
}

// NewFilter wraps spec for use in a Config built in code.
func NewFilter(spec filter.Spec) *Filter {
	return &Filter{spec: spec, raw: spec.String()}
}

// Spec returns the compiled filter spec. A nil filter has the zero spec.
func (f *Filter) Spec() filter.Spec {
	if f == nil {
		return filter.Spec{}
	}
	return f.spec
}

func (f *Filter) UnmarshalYAML(bs []byte) error {
	var v any
	if err := yaml.Unmarshal(bs, &v); err != nil {
		return err
	}
	spec, err := specFrom(v)
	if err != nil {
		return err
	}
	*f = Filter{spec: spec, raw: v}
	return nil
}

func (f Filter) MarshalYAML() (any, error) {
	return f.raw, nil
}

func specFrom(v any) (filter.Spec, error) {
	switch v := v.(type) {
	case bool:
		return filter.Const(v), nil
	case string:
		return filter.Equals(v), nil
	case map[string]any:
		if p, ok := v["pattern"].(string); ok {
			return filter.ParsePattern(p)
		}
		if g, ok := v["glob"].(string); ok {
			return filter.Glob(g)
		}
		return filter.Spec{}, fmt.Errorf("filter object needs a pattern or glob key")
	case nil:
		return filter.Spec{}, nil
	default:
		return filter.Spec{}, fmt.Errorf("unsupported filter value of type %T", v)
	}
}

// FilterList is one filter value or a list of them.
type FilterList []*Filter

func (l *FilterList) UnmarshalYAML(bs []byte) error {
	var v any
	if err := yaml.Unmarshal(bs, &v); err != nil {
		return err
	}

	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}

	out := make(FilterList, 0, len(items))
	for i, item := range items {
		spec, err := specFrom(item)
		if err != nil {
			return fmt.Errorf("exclude[%d]: %w", i, err)
		}
		out = append(out, &Filter{spec: spec, raw: item})
	}
	*l = out
	return nil
}

// Specs returns the spec of every filter in the list.
func (l FilterList) Specs() []filter.Spec {
	specs := make([]filter.Spec, 0, len(l))
	for _, f := range l {
		specs = append(specs, f.Spec())
	}
	return specs
}

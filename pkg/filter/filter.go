// Package filter compiles user supplied source predicates.
//
// A predicate option may be a function, a constant, an exact string, a
// regular expression or a glob. Options are compiled once into a Predicate
// and lists of options are combined with a logical OR.
package filter

import (
	"fmt"
	"regexp"

	"github.com/gobwas/glob"
)

// Predicate reports whether a source matches.
type Predicate func(source string) bool

// Kind identifies the variant held by a Spec.
type Kind int

const (
	// KindNone is an absent option; it compiles to the default predicate.
	KindNone Kind = iota
	KindFunc
	KindConst
	KindEquals
	KindPattern
	KindGlob
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindConst:
		return "const"
	case KindEquals:
		return "equals"
	case KindPattern:
		return "pattern"
	case KindGlob:
		return "glob"
	default:
		return "none"
	}
}

// Spec is a single predicate option.
type Spec struct {
	kind  Kind
	fn    Predicate
	value bool
	str   string
	re    *regexp.Regexp
	glob  glob.Glob
}

// Func wraps a custom predicate.
func Func(fn Predicate) Spec {
	if fn == nil {
		return Spec{}
	}
	return Spec{kind: KindFunc, fn: fn}
}

// Const matches every source (true) or none (false).
func Const(v bool) Spec {
	return Spec{kind: KindConst, value: v}
}

// Equals matches sources equal to s.
func Equals(s string) Spec {
	return Spec{kind: KindEquals, str: s}
}

// Pattern matches sources the regular expression finds a match in.
func Pattern(re *regexp.Regexp) Spec {
	if re == nil {
		return Spec{}
	}
	return Spec{kind: KindPattern, re: re, str: re.String()}
}

// ParsePattern compiles expr and returns a Pattern spec.
func ParsePattern(expr string) (Spec, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid pattern %q: %w", expr, err)
	}
	return Pattern(re), nil
}

// Glob matches sources against a glob pattern using '/' as separator.
func Glob(pattern string) (Spec, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return Spec{}, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return Spec{kind: KindGlob, glob: g, str: pattern}, nil
}

// Kind returns the variant of s.
func (s Spec) Kind() Kind {
	return s.kind
}

// IsZero reports whether s is an absent option.
func (s Spec) IsZero() bool {
	return s.kind == KindNone
}

func (s Spec) String() string {
	switch s.kind {
	case KindConst:
		return fmt.Sprintf("%s(%t)", s.kind, s.value)
	case KindEquals, KindPattern, KindGlob:
		return fmt.Sprintf("%s(%q)", s.kind, s.str)
	default:
		return s.kind.String()
	}
}

// Compile turns s into a predicate. An absent spec yields def.
func Compile(s Spec, def Predicate) Predicate {
	switch s.kind {
	case KindFunc:
		return s.fn
	case KindConst:
		v := s.value
		return func(string) bool { return v }
	case KindEquals:
		want := s.str
		return func(source string) bool { return source == want }
	case KindPattern:
		re := s.re
		return re.MatchString
	case KindGlob:
		return s.glob.Match
	}
	if def == nil {
		return Never
	}
	return def
}

// List is a set of predicates combined with a logical OR.
type List []Predicate

// CompileList compiles every spec. An empty input yields a list holding def.
func CompileList(specs []Spec, def Predicate) List {
	if len(specs) == 0 {
		return List{Compile(Spec{}, def)}
	}
	l := make(List, 0, len(specs))
	for _, s := range specs {
		l = append(l, Compile(s, def))
	}
	return l
}

// Any reports whether any predicate matches source. It stops at the first match.
func (l List) Any(source string) bool {
	for _, p := range l {
		if p(source) {
			return true
		}
	}
	return false
}

// Always matches every source.
func Always(string) bool { return true }

// Never matches no source.
func Never(string) bool { return false }

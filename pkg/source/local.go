package source

import (
	"context"
	"fmt"
	"os"
)

// Local fetches sources from the filesystem.
type Local struct {
	resolver Resolver
	warn     Warner
}

// NewLocal creates a local fetcher.
func NewLocal(resolver Resolver, warn Warner) *Local {
	if warn == nil {
		warn = WarnFunc(func(error) {})
	}
	return &Local{resolver: resolver, warn: warn}
}

// Fetch resolves source against sourceRoot and reads it. On any failure a
// warning is emitted and ok is false.
func (l *Local) Fetch(ctx context.Context, source, sourceRoot string) (content string, ok bool) {
	if l.resolver == nil {
		l.warn.EmitWarning(fmt.Errorf("no resolver configured for source '%s'", source))
		return "", false
	}

	p, err := l.resolver.Resolve(ctx, sourceRoot, source)
	if err != nil {
		l.warn.EmitWarning(err)
		return "", false
	}

	f, err := os.Open(p)
	if err != nil {
		l.warn.EmitWarning(fmt.Errorf("failed to read source '%s': %w", source, err))
		return "", false
	}
	defer f.Close()

	content, err = readText(f, p)
	if err != nil {
		l.warn.EmitWarning(err)
		return "", false
	}
	return content, true
}

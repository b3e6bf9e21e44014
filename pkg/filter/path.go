package filter

// PathFilter filters paths based on include/exclude glob patterns.
type PathFilter struct {
	includes List
	excludes List
}

// NewPathFilter creates a new PathFilter from include and exclude glob patterns.
func NewPathFilter(includePatterns, excludePatterns []string) (*PathFilter, error) {
	f := &PathFilter{}

	for _, p := range includePatterns {
		s, err := Glob(p)
		if err != nil {
			return nil, err
		}
		f.includes = append(f.includes, Compile(s, nil))
	}

	for _, p := range excludePatterns {
		s, err := Glob(p)
		if err != nil {
			return nil, err
		}
		f.excludes = append(f.excludes, Compile(s, nil))
	}

	return f, nil
}

// Matches returns true if the path matches the filter criteria.
// A path matches if:
// - It matches at least one include pattern (or no includes are specified)
// - It does not match any exclude pattern
func (f *PathFilter) Matches(path string) bool {
	if f.excludes.Any(path) {
		return false
	}
	if len(f.includes) == 0 {
		return true
	}
	return f.includes.Any(path)
}

// HasPatterns returns true if any patterns are configured.
func (f *PathFilter) HasPatterns() bool {
	return len(f.includes) > 0 || len(f.excludes) > 0
}

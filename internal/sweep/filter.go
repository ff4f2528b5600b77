package sweep

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects jobs by matching their output directory, relative to the
// output root, against doublestar patterns. Excludes win over includes.
type Filter struct {
	includes []string
	excludes []string
}

// NewFilter validates the patterns. No includes means everything is included.
func NewFilter(includes, excludes []string) (*Filter, error) {
	for _, p := range append(append([]string(nil), includes...), excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid job pattern %q", p)
		}
	}
	return &Filter{includes: includes, excludes: excludes}, nil
}

// Match reports whether the relative directory is selected.
func (f *Filter) Match(rel string) bool {
	for _, p := range f.excludes {
		if matchPattern(p, rel) {
			return false
		}
	}
	if len(f.includes) == 0 {
		return true
	}
	for _, p := range f.includes {
		if matchPattern(p, rel) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, rel string) bool {
	matched, err := doublestar.Match(pattern, rel)
	if err != nil {
		return false
	}
	return matched
}

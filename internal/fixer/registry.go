package fixer

import (
	"fmt"
	"strings"
)

// Registry is a constructed-once lookup from check IDs to fixers. It is
// passed by reference into the session controller; there is no process-wide
// singleton.
type Registry struct {
	fixers []*Fixer
}

// NewRegistry builds a registry from the given fixers. Registration order is
// preserved and is the tiebreak for dispatch ordering.
func NewRegistry(fixers ...*Fixer) (*Registry, error) {
	seen := make(map[string]bool, len(fixers))
	for _, f := range fixers {
		if f.ID == "" || f.Pattern == "" {
			return nil, fmt.Errorf("fixer %q: missing id or pattern", f.ID)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("duplicate fixer id %q", f.ID)
		}
		seen[f.ID] = true
		if f.Guard == nil {
			return nil, fmt.Errorf("fixer %q: missing guard", f.ID)
		}
		if f.Category == CategoryManual {
			if f.Suggest == nil {
				return nil, fmt.Errorf("manual fixer %q: missing suggestion", f.ID)
			}
		} else if f.Plan == nil || f.Apply == nil {
			return nil, fmt.Errorf("fixer %q: missing plan or apply", f.ID)
		}
	}
	return &Registry{fixers: fixers}, nil
}

// Fixers returns the registered fixers in registration order.
func (r *Registry) Fixers() []*Fixer {
	return r.fixers
}

// Index returns the registration position of a fixer, for dispatch ordering.
func (r *Registry) Index(f *Fixer) int {
	for i, g := range r.fixers {
		if g == f {
			return i
		}
	}
	return len(r.fixers)
}

// Match returns the fixer whose pattern matches checkID. When several
// patterns match, the most specific wins: an exact pattern beats any glob,
// and among globs the longest literal prefix wins. Ties fall back to
// registration order, so the result is deterministic.
func (r *Registry) Match(checkID string) (*Fixer, bool) {
	var best *Fixer
	bestScore := -1
	for _, f := range r.fixers {
		if !patternMatches(f.Pattern, checkID) {
			continue
		}
		score := specificity(f.Pattern)
		if score > bestScore {
			best = f
			bestScore = score
		}
	}
	return best, best != nil
}

// patternMatches reports whether pattern matches a dotted check ID. Patterns
// are either exact IDs or a literal prefix followed by ".*", which matches
// any ID under that prefix (including nested segments).
func patternMatches(pattern, checkID string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(checkID, prefix+".")
	}
	return pattern == checkID
}

// specificity orders patterns: exact patterns rank above all globs, globs
// rank by literal prefix length.
func specificity(pattern string) int {
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return len(prefix)
	}
	// Exact patterns outrank any glob regardless of length.
	return len(pattern) + 1<<16
}

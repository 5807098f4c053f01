package permissions

import (
	sq "github.com/Masterminds/squirrel"
)

// Combine merges the per-scope results of a scope check into one decision.
// The default for every action is CombineAny: one granting scope suffices,
// and view predicates are unioned.
type Combine int

const (
	// CombineAny grants access if at least one scope grants it. View
	// predicates are joined with OR.
	CombineAny Combine = iota

	// CombineAll grants access only if every scope grants it. View
	// predicates are joined with AND.
	CombineAll
)

// Predicates reduces the per-scope view predicates into one.
func (c Combine) Predicates(preds []sq.Sqlizer) sq.Sqlizer {
	if len(preds) == 1 {
		return preds[0]
	}

	if c == CombineAll {
		return sq.And(preds)
	}

	return sq.Or(preds)
}

// Booleans reduces the per-scope write decisions into one.
func (c Combine) Booleans(results []bool) bool {
	if c == CombineAll {
		for _, ok := range results {
			if !ok {
				return false
			}
		}

		return len(results) > 0
	}

	for _, ok := range results {
		if ok {
			return true
		}
	}

	return false
}

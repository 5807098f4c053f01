// Package scopes defines the scope vocabulary. A scope names a subset of a
// model's objects (and optionally fields) that a permission applies to;
// the permissions package resolves scope slugs into query predicates or
// boolean checks.
package scopes

import (
	"slices"
	"sync"
)

// ScopeSlug identifies a scope. Scope slugs are referenced by the
// permission table and resolved per model by a checker.
type ScopeSlug string

// Built-in scopes. ScopeAll is implemented for every model and grants
// access to every object in the default queryset.
const (
	// ScopeAll grants access to all objects of the model.
	ScopeAll ScopeSlug = "all"

	// ScopeOwn grants access to the objects belonging to the requesting
	// user. Each model defines what "belonging" means.
	ScopeOwn ScopeSlug = "own"
)

type Scope struct {
	Slug        ScopeSlug `json:"slug"`
	Description string    `json:"description"`
}

var (
	registryMu sync.RWMutex
	registry   = []Scope{
		{Slug: ScopeAll, Description: "Access to all objects"},
		{Slug: ScopeOwn, Description: "Access to the user's own objects"},
	}
)

// Register adds application scopes to the registry. Registering an already
// known slug replaces its description.
func Register(scope Scope) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for i, existing := range registry {
		if existing.Slug == scope.Slug {
			registry[i] = scope
			return
		}
	}

	registry = append(registry, scope)
}

// AllScopes returns all registered scopes.
func AllScopes() []Scope {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return slices.Clone(registry)
}

// AllScopesAsStrings returns all registered scopes as strings.
func AllScopesAsStrings() []string {
	scopes := AllScopes()

	result := make([]string, len(scopes))
	for i, scope := range scopes {
		result[i] = string(scope.Slug)
	}

	return result
}

// IsValidScope checks if a scope slug is registered.
func IsValidScope(scope string) bool {
	for _, validScope := range AllScopes() {
		if string(validScope.Slug) == scope {
			return true
		}
	}

	return false
}

package contexts

import (
	"context"
	"sync"

	"github.com/scopegate/scopegate/internal/scopes"
)

// ScopingRecord tracks which permission checks and scopings ran during a
// request. The scoping guard middleware inspects it after the handler to
// catch code paths that skipped permission enforcement.
type ScopingRecord struct {
	mu      sync.Mutex
	checked bool
	actions []scopes.Action
}

// MarkChecked records that a permission lookup happened.
func (r *ScopingRecord) MarkChecked() {
	r.mu.Lock()
	r.checked = true
	r.mu.Unlock()
}

// Checked reports whether any permission lookup happened.
func (r *ScopingRecord) Checked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.checked
}

// MarkScoped records that scoping ran for the given action.
func (r *ScopingRecord) MarkScoped(action scopes.Action) {
	r.mu.Lock()
	r.actions = append(r.actions, action)
	r.mu.Unlock()
}

// Scoped reports whether scoping ran for the given action.
func (r *ScopingRecord) Scoped(action scopes.Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.actions {
		if a == action {
			return true
		}
	}

	return false
}

// Actions returns the actions that were scoped, in order.
func (r *ScopingRecord) Actions() []scopes.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]scopes.Action, len(r.actions))
	copy(actions, r.actions)

	return actions
}

// WithScoping attaches a fresh scoping record to the context.
func WithScoping(ctx context.Context) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	if container.Scoping == nil {
		container.Scoping = &ScopingRecord{}
	}
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetScoping retrieves the scoping record from the context.
func GetScoping(ctx context.Context) (*ScopingRecord, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	return container.Scoping, container.Scoping != nil
}

// WithParsedPermissions caches the resolved permission-to-scopes mapping on
// the request container so it is computed once per request.
func WithParsedPermissions(ctx context.Context, perms map[string][]scopes.ScopeSlug) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.Permissions = perms
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetParsedPermissions returns the cached permission map, if any.
func GetParsedPermissions(ctx context.Context) (map[string][]scopes.ScopeSlug, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	return container.Permissions, container.Permissions != nil
}

package permissions

import (
	"context"
	"net/http"

	"github.com/scopegate/scopegate/internal/authz"
	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/scopes"
)

// requiredActions maps an HTTP method to the actions, any of which proves
// that scoping ran. DELETE covers undeletes as well: delete and undelete
// are both allowed iff the principal has delete permission.
func requiredActions(method string) []scopes.Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return []scopes.Action{scopes.ActionView}
	case http.MethodDelete:
		return []scopes.Action{scopes.ActionDelete}
	default:
		return []scopes.Action{scopes.ActionAdd, scopes.ActionChange, scopes.ActionDelete}
	}
}

// VerifyScoping checks, after a handler ran, that permissions were checked
// and the method-appropriate scoping was done. Bypassed contexts pass.
func VerifyScoping(ctx context.Context, method string) error {
	if authz.IsBypassActive(ctx) {
		return nil
	}

	if p, ok := authz.GetPrincipal(ctx); ok && (p.IsSystem() || p.IsTest()) {
		return nil
	}

	rec, ok := contexts.GetScoping(ctx)
	if !ok || !rec.Checked() {
		return ErrPermissionNotChecked
	}

	required := requiredActions(method)

	for _, action := range required {
		if rec.Scoped(action) {
			return nil
		}
	}

	return &ScopingNotDoneError{Actions: required}
}

// MarkNoScopingRequired records the method-appropriate scoping without
// performing any check. Handlers that genuinely operate outside the model
// permission system (health checks, sign-in) use this to satisfy the
// scoping guard.
func MarkNoScopingRequired(ctx context.Context, method string) {
	rec, ok := contexts.GetScoping(ctx)
	if !ok {
		return
	}

	rec.MarkChecked()

	switch method {
	case http.MethodGet, http.MethodHead:
		rec.MarkScoped(scopes.ActionView)
	case http.MethodPost:
		rec.MarkScoped(scopes.ActionAdd)
	case http.MethodPut, http.MethodPatch:
		rec.MarkScoped(scopes.ActionChange)
	default:
		rec.MarkScoped(scopes.ActionDelete)
	}
}

package permissions

import (
	"errors"
	"fmt"

	"github.com/scopegate/scopegate/internal/scopes"
)

// ErrPermissionNotChecked is reported by the scoping guard when a handler
// completed without any permission lookup.
var ErrPermissionNotChecked = errors.New("permissions: no permission check done")

// ForbiddenError is returned when the principal holds no applicable
// permission for the attempted action.
type ForbiddenError struct {
	Permission string
	Principal  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s denied for %s", e.Permission, e.Principal)
}

// ScopingError is returned when the principal holds the permission but no
// granted scope allows the action on the object.
type ScopingError struct {
	Principal string
	Action    scopes.Action
	Model     string
}

func (e *ScopingError) Error() string {
	return fmt.Sprintf("%s does not have a scope that allows them to %s model=%s", e.Principal, e.Action, e.Model)
}

// UnexpectedScopeError is returned when a granted scope has no
// implementation for the model.
type UnexpectedScopeError struct {
	Scope scopes.ScopeSlug
	Model string
}

func (e *UnexpectedScopeError) Error() string {
	return fmt.Sprintf("scope %s is not implemented for model %s", e.Scope, e.Model)
}

// ScopingNotDoneError is reported by the scoping guard when the handler
// succeeded without scoping the action its HTTP method implies.
type ScopingNotDoneError struct {
	Actions []scopes.Action
}

func (e *ScopingNotDoneError) Error() string {
	if len(e.Actions) == 1 {
		return fmt.Sprintf("no %s scoping done", e.Actions[0])
	}

	return "no add, change or delete scoping done"
}

// IsForbidden reports whether err denies access (missing permission or
// scope), as opposed to an internal failure.
func IsForbidden(err error) bool {
	var (
		forbidden *ForbiddenError
		scoping   *ScopingError
	)

	return errors.As(err, &forbidden) || errors.As(err, &scoping)
}

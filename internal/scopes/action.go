package scopes

import "net/http"

// Action is the kind of operation a principal performs on a model. The four
// CRUD actions support scoping; custom actions carry permissions only.
type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// IsCRUD reports whether the action is one of the four scoped actions.
func (a Action) IsCRUD() bool {
	switch a {
	case ActionView, ActionAdd, ActionChange, ActionDelete:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	return string(a)
}

// ActionForMethod maps an HTTP method to the action it implies.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead:
		return ActionView
	case http.MethodPost:
		return ActionAdd
	case http.MethodPut, http.MethodPatch:
		return ActionChange
	default:
		return ActionDelete
	}
}

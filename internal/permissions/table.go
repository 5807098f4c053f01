package permissions

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/scopegate/scopegate/internal/scopes"
)

// DefaultPermission is the high-level permission every principal holds
// implicitly.
const DefaultPermission = "default"

// Grant pairs a low-level permission string with an optional scope. The
// permission format is "{app}.{action}_{model}"; an empty scope grants the
// permission without any objects (useful for custom actions).
type Grant struct {
	Permission string           `conf:"permission" yaml:"permission" json:"permission" mapstructure:"permission"`
	Scope      scopes.ScopeSlug `conf:"scope" yaml:"scope" json:"scope" mapstructure:"scope"`
}

// Table maps the high-level permissions held by principals (role names,
// feature flags) to the low-level grants they unlock.
type Table map[string][]Grant

// Parse translates the high-level permissions held by a principal into a
// mapping from low-level permission to the scopes granted for it.
// Duplicate scopes are removed to avoid unnecessary OR terms in the
// resulting queries.
func (t Table) Parse(held []string) map[string][]scopes.ScopeSlug {
	parsed := make(map[string][]scopes.ScopeSlug)

	for _, p := range held {
		grants, ok := t[p]
		if !ok {
			continue
		}

		for _, grant := range grants {
			if _, ok := parsed[grant.Permission]; !ok {
				parsed[grant.Permission] = []scopes.ScopeSlug{} // Permission held, possibly without scopes
			}

			if grant.Scope != "" {
				parsed[grant.Permission] = append(parsed[grant.Permission], grant.Scope)
			}
		}
	}

	for perm, slugs := range parsed {
		parsed[perm] = lo.Uniq(slugs)
	}

	return parsed
}

// PermissionName builds the low-level permission string for an action on a
// model.
func PermissionName(app string, action scopes.Action, model string) string {
	return fmt.Sprintf("%s.%s_%s", app, action, model)
}

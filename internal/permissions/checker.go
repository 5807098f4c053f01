// Package permissions implements scope-based object-level permission
// enforcement.
//
// Permissions are specified as a combination of a low-level permission
// string and a scope:
//
//	("{app}.{action}_{model}", "{scope}")
//
// where action is one of "view", "add", "change" or "delete" (custom
// actions carry permissions but no scopes). A scope defines a subset of
// the model's objects that a principal is allowed to perform the action
// on.
//
// A scope is enforced by a scope function registered on the model's
// checker. Scope functions for the view action return a query predicate;
// the predicates of every granted scope are combined, by default by
// taking the union. Scope functions for the other actions return a
// boolean; by default the principal is allowed if at least one granted
// scope allows the action, otherwise a ScopingError is returned.
//
// The scope "all" is implemented for every model and grants access to all
// objects. Scopes without an explicit function may be declared through a
// relation table (RelationScopes) or a declarative scope table
// (ScopeTable).
package permissions

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/scopegate/scopegate/internal/authz"
	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/log"
	"github.com/scopegate/scopegate/internal/scopes"
)

// ViewScopeFunc computes the query predicate selecting the objects a scope
// grants view access to.
type ViewScopeFunc func(ctx context.Context) (sq.Sqlizer, error)

// WriteScopeFunc decides whether a scope allows a write action on an
// object with the given incoming values. For the add action object is nil.
type WriteScopeFunc func(ctx context.Context, object, values map[string]any) (bool, error)

// Checker enforces scoped permissions for one model.
type Checker struct {
	table    Table
	app      string
	model    string
	permsVia string

	view      map[scopes.ScopeSlug]ViewScopeFunc
	write     map[scopes.Action]map[scopes.ScopeSlug]WriteScopeFunc
	combine   map[scopes.Action]Combine
	relations *RelationScopes
	dynamic   *ScopeTable
}

// Option configures a Checker.
type Option func(*Checker)

// WithPermsVia makes the checker use the exact same permission strings as
// another model.
func WithPermsVia(model string) Option {
	return func(c *Checker) {
		c.permsVia = model
	}
}

// WithViewScope registers a view scope function.
func WithViewScope(slug scopes.ScopeSlug, fn ViewScopeFunc) Option {
	return func(c *Checker) {
		c.view[slug] = fn
	}
}

// WithWriteScope registers a write scope function for an action.
func WithWriteScope(action scopes.Action, slug scopes.ScopeSlug, fn WriteScopeFunc) Option {
	return func(c *Checker) {
		if c.write[action] == nil {
			c.write[action] = make(map[scopes.ScopeSlug]WriteScopeFunc)
		}

		c.write[action][slug] = fn
	}
}

// WithCombine overrides how per-scope results are merged for an action.
func WithCombine(action scopes.Action, combine Combine) Option {
	return func(c *Checker) {
		c.combine[action] = combine
	}
}

// WithRelationScopes declares scopes based on the existence of a relation.
func WithRelationScopes(relations *RelationScopes) Option {
	return func(c *Checker) {
		c.relations = relations
	}
}

// WithScopeTable declares scopes from a declarative scope table.
func WithScopeTable(table *ScopeTable) Option {
	return func(c *Checker) {
		c.dynamic = table
	}
}

// NewChecker creates a permission checker for a model. The model name must
// be the lowercase name used in permission strings.
func NewChecker(table Table, app, model string, opts ...Option) *Checker {
	c := &Checker{
		table:   table,
		app:     app,
		model:   model,
		view:    make(map[scopes.ScopeSlug]ViewScopeFunc),
		write:   make(map[scopes.Action]map[scopes.ScopeSlug]WriteScopeFunc),
		combine: make(map[scopes.Action]Combine),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the model name the checker guards.
func (c *Checker) Model() string {
	return c.model
}

// Scopes resolves the scopes the principal holds for the given action on
// this model. It returns a ForbiddenError if the principal does not hold
// the permission at all. Resolving scopes for a non-CRUD action with a
// non-empty scope list is an error.
func (c *Checker) Scopes(ctx context.Context, action scopes.Action) ([]scopes.ScopeSlug, error) {
	c.markChecked(ctx)

	// Bypassed, system and test contexts see everything.
	if authz.IsBypassActive(ctx) {
		return []scopes.ScopeSlug{scopes.ScopeAll}, nil
	}

	if p, ok := authz.GetPrincipal(ctx); ok && (p.IsSystem() || p.IsTest()) {
		return []scopes.ScopeSlug{scopes.ScopeAll}, nil
	}

	user, authenticated := contexts.GetUser(ctx)

	// The superuser can do everything.
	if authenticated && user.IsSuperuser {
		return []scopes.ScopeSlug{scopes.ScopeAll}, nil
	}

	parsed, cached := contexts.GetParsedPermissions(ctx)
	if !cached {
		// Everyone holds the default permission group, including
		// anonymous principals.
		held := []string{DefaultPermission}
		if authenticated {
			held = append(user.AllPermissions(), DefaultPermission)
		}

		parsed = c.table.Parse(held)
		contexts.WithParsedPermissions(ctx, parsed)
	}

	perm := c.permissionName(action)

	granted, ok := parsed[perm]
	if !ok {
		return nil, &ForbiddenError{Permission: perm, Principal: principalString(ctx)}
	}

	if !action.IsCRUD() && len(granted) > 0 {
		return nil, fmt.Errorf(
			"scoping for permission %s cannot be done: scoping is only possible for view, add, change and delete", perm)
	}

	return granted, nil
}

// ScopeView computes the predicate restricting view queries to the objects
// the principal's scopes grant. The per-scope predicates are combined by
// union unless configured otherwise.
func (c *Checker) ScopeView(ctx context.Context) (sq.Sqlizer, error) {
	granted, err := c.Scopes(ctx, scopes.ActionView)
	if err != nil {
		return nil, err
	}

	if len(granted) == 0 {
		return nil, &ScopingError{
			Principal: principalString(ctx),
			Action:    scopes.ActionView,
			Model:     c.model,
		}
	}

	preds := make([]sq.Sqlizer, 0, len(granted))

	for _, slug := range granted {
		fn, err := c.viewScope(slug)
		if err != nil {
			return nil, err
		}

		pred, err := fn(ctx)
		if err != nil {
			return nil, fmt.Errorf("view scope %s for model %s: %w", slug, c.model, err)
		}

		preds = append(preds, pred)
	}

	c.markScoped(ctx, scopes.ActionView)

	return c.combineFor(scopes.ActionView).Predicates(preds), nil
}

// ScopeAdd checks that some granted scope allows creating the object.
func (c *Checker) ScopeAdd(ctx context.Context, values map[string]any) error {
	return c.scopeWrite(ctx, scopes.ActionAdd, nil, values)
}

// ScopeChange checks that some granted scope allows changing the object
// with the incoming values.
func (c *Checker) ScopeChange(ctx context.Context, object, values map[string]any) error {
	return c.scopeWrite(ctx, scopes.ActionChange, object, values)
}

// ScopeChangeList scopes a possibly empty list of objects. An empty list
// still records that change scoping was performed.
func (c *Checker) ScopeChangeList(ctx context.Context, objects []map[string]any, values map[string]any) error {
	for _, object := range objects {
		if err := c.ScopeChange(ctx, object, values); err != nil {
			return err
		}
	}

	c.markChecked(ctx)
	c.markScoped(ctx, scopes.ActionChange)

	return nil
}

// ScopeDelete checks that some granted scope allows deleting the object.
func (c *Checker) ScopeDelete(ctx context.Context, object map[string]any) error {
	return c.scopeWrite(ctx, scopes.ActionDelete, object, map[string]any{})
}

func (c *Checker) scopeWrite(ctx context.Context, action scopes.Action, object, values map[string]any) error {
	granted, err := c.Scopes(ctx, action)
	if err != nil {
		return err
	}

	results := make([]bool, 0, len(granted))

	for _, slug := range granted {
		fn, err := c.writeScope(action, slug)
		if err != nil {
			return err
		}

		ok, err := fn(ctx, object, values)
		if err != nil {
			return fmt.Errorf("%s scope %s for model %s: %w", action, slug, c.model, err)
		}

		results = append(results, ok)
	}

	if !c.combineFor(action).Booleans(results) {
		log.Debug(ctx, "scoping denied",
			log.String("model", c.model),
			log.String("action", action.String()),
			log.String("principal", principalString(ctx)),
		)

		return &ScopingError{
			Principal: principalString(ctx),
			Action:    action,
			Model:     c.model,
		}
	}

	c.markScoped(ctx, action)

	return nil
}

// viewScope resolves the view scope function for a slug: the built-in
// "all" scope first, then explicitly registered functions, then relation
// scopes, then the declarative scope table.
func (c *Checker) viewScope(slug scopes.ScopeSlug) (ViewScopeFunc, error) {
	return c.resolveViewScope(slug, nil)
}

// visited carries the scopes already being composed, to reject cyclic
// scope table declarations instead of recursing into them.
func (c *Checker) resolveViewScope(slug scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (ViewScopeFunc, error) {
	if slug == scopes.ScopeAll {
		return func(context.Context) (sq.Sqlizer, error) {
			return sq.NotEq{"id": nil}, nil
		}, nil
	}

	if fn, ok := c.view[slug]; ok {
		return fn, nil
	}

	if c.relations != nil && c.relations.Has(slug) {
		return func(context.Context) (sq.Sqlizer, error) {
			return c.relations.ViewPredicate(slug)
		}, nil
	}

	if c.dynamic != nil && c.dynamic.Has(slug) {
		return c.dynamic.viewScope(c, slug, visited)
	}

	return nil, &UnexpectedScopeError{Scope: slug, Model: c.model}
}

func (c *Checker) writeScope(action scopes.Action, slug scopes.ScopeSlug) (WriteScopeFunc, error) {
	return c.resolveWriteScope(action, slug, nil)
}

func (c *Checker) resolveWriteScope(action scopes.Action, slug scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (WriteScopeFunc, error) {
	if slug == scopes.ScopeAll {
		return func(context.Context, map[string]any, map[string]any) (bool, error) {
			return true, nil
		}, nil
	}

	if fn, ok := c.write[action][slug]; ok {
		return fn, nil
	}

	if c.relations != nil && c.relations.Has(slug) {
		return func(_ context.Context, object, values map[string]any) (bool, error) {
			return c.relations.WriteCheck(slug, object, values)
		}, nil
	}

	if c.dynamic != nil && c.dynamic.Has(slug) {
		return c.dynamic.writeScope(c, action, slug, visited)
	}

	return nil, &UnexpectedScopeError{Scope: slug, Model: c.model}
}

func (c *Checker) combineFor(action scopes.Action) Combine {
	return c.combine[action]
}

func (c *Checker) permissionName(action scopes.Action) string {
	model := c.model
	if c.permsVia != "" {
		model = c.permsVia
	}

	return PermissionName(c.app, action, model)
}

func (c *Checker) markChecked(ctx context.Context) {
	if rec, ok := contexts.GetScoping(ctx); ok {
		rec.MarkChecked()
	}
}

func (c *Checker) markScoped(ctx context.Context, action scopes.Action) {
	if rec, ok := contexts.GetScoping(ctx); ok {
		rec.MarkScoped(action)
	}
}

func principalString(ctx context.Context) string {
	if p, ok := authz.GetPrincipal(ctx); ok {
		return p.String()
	}

	return "anonymous"
}

package permissions

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/scopes"
)

// ScopeEnv is the environment scope expressions are evaluated against.
type ScopeEnv struct {
	// UserID is the id of the requesting user, 0 when anonymous.
	UserID int64 `expr:"UserID"`
	// IsSuperuser reports whether the requesting user is a superuser.
	IsSuperuser bool `expr:"IsSuperuser"`
	// Object is the stored object a change/delete targets; nil for add.
	Object map[string]any `expr:"Object"`
	// Values are the incoming values of the write.
	Values map[string]any `expr:"Values"`
}

// Definition declares one scope. Exactly one of the forms should be set,
// except that Predicate (the view form) may be combined with Write or Expr
// (the write forms):
//
//   - Predicate: a static view predicate.
//   - View: a computed view predicate.
//   - Write: a write check function.
//   - Expr: a boolean expression over ScopeEnv deciding write actions,
//     e.g. `Values.owner_id == UserID`.
//   - Compose: other scopes combined with AND; for the view action the
//     sub-predicates are intersected, for writes every sub-scope must
//     pass.
type Definition struct {
	Predicate sq.Sqlizer
	View      ViewScopeFunc
	Write     WriteScopeFunc
	Expr      string
	Compose   []scopes.ScopeSlug
}

// ScopeTable declares scopes declaratively instead of through imperative
// enforcement functions.
type ScopeTable struct {
	defs     map[scopes.ScopeSlug]Definition
	programs map[scopes.ScopeSlug]*vm.Program
}

// NewScopeTable compiles the expressions of the definitions and returns
// the table.
func NewScopeTable(defs map[scopes.ScopeSlug]Definition) (*ScopeTable, error) {
	programs := make(map[scopes.ScopeSlug]*vm.Program)

	for slug, def := range defs {
		if def.Expr == "" {
			continue
		}

		program, err := expr.Compile(def.Expr, expr.Env(ScopeEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile scope %s expression: %w", slug, err)
		}

		programs[slug] = program
	}

	return &ScopeTable{defs: defs, programs: programs}, nil
}

// MustScopeTable is NewScopeTable that panics on compile errors, for
// package-level declarations.
func MustScopeTable(defs map[scopes.ScopeSlug]Definition) *ScopeTable {
	table, err := NewScopeTable(defs)
	if err != nil {
		panic(err)
	}

	return table
}

// Has reports whether the slug is declared.
func (t *ScopeTable) Has(slug scopes.ScopeSlug) bool {
	_, ok := t.defs[slug]
	return ok
}

func (t *ScopeTable) viewScope(c *Checker, slug scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (ViewScopeFunc, error) {
	def := t.defs[slug]

	switch {
	case def.Predicate != nil:
		return func(context.Context) (sq.Sqlizer, error) {
			return def.Predicate, nil
		}, nil
	case def.View != nil:
		return def.View, nil
	case len(def.Compose) > 0:
		return t.composedViewScope(c, slug, def.Compose, visited)
	default:
		return nil, &UnexpectedScopeError{Scope: slug, Model: c.model}
	}
}

// composedViewScope intersects the view predicates of the composed scopes.
func (t *ScopeTable) composedViewScope(c *Checker, slug scopes.ScopeSlug, parts []scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (ViewScopeFunc, error) {
	if visited == nil {
		visited = make(map[scopes.ScopeSlug]bool)
	}

	visited[slug] = true

	fns := make([]ViewScopeFunc, 0, len(parts))

	for _, part := range parts {
		if part == slug {
			return nil, fmt.Errorf("scope %s composes itself", slug)
		}

		if visited[part] {
			return nil, fmt.Errorf("scope %s composes %s in a cycle", slug, part)
		}

		fn, err := c.resolveViewScope(part, visited)
		if err != nil {
			return nil, err
		}

		fns = append(fns, fn)
	}

	return func(ctx context.Context) (sq.Sqlizer, error) {
		preds := make([]sq.Sqlizer, 0, len(fns))

		for _, fn := range fns {
			pred, err := fn(ctx)
			if err != nil {
				return nil, err
			}

			preds = append(preds, pred)
		}

		return sq.And(preds), nil
	}, nil
}

func (t *ScopeTable) writeScope(c *Checker, action scopes.Action, slug scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (WriteScopeFunc, error) {
	def := t.defs[slug]

	switch {
	case def.Write != nil:
		return def.Write, nil
	case def.Expr != "":
		program := t.programs[slug]

		return func(ctx context.Context, object, values map[string]any) (bool, error) {
			return t.runProgram(ctx, program, object, values)
		}, nil
	case len(def.Compose) > 0:
		return t.composedWriteScope(c, action, slug, def.Compose, visited)
	default:
		return nil, &UnexpectedScopeError{Scope: slug, Model: c.model}
	}
}

// composedWriteScope passes only when every composed scope passes.
func (t *ScopeTable) composedWriteScope(c *Checker, action scopes.Action, slug scopes.ScopeSlug, parts []scopes.ScopeSlug, visited map[scopes.ScopeSlug]bool) (WriteScopeFunc, error) {
	if visited == nil {
		visited = make(map[scopes.ScopeSlug]bool)
	}

	visited[slug] = true

	fns := make([]WriteScopeFunc, 0, len(parts))

	for _, part := range parts {
		if part == slug {
			return nil, fmt.Errorf("scope %s composes itself", slug)
		}

		if visited[part] {
			return nil, fmt.Errorf("scope %s composes %s in a cycle", slug, part)
		}

		fn, err := c.resolveWriteScope(action, part, visited)
		if err != nil {
			return nil, err
		}

		fns = append(fns, fn)
	}

	return func(ctx context.Context, object, values map[string]any) (bool, error) {
		for _, fn := range fns {
			ok, err := fn(ctx, object, values)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	}, nil
}

func (t *ScopeTable) runProgram(ctx context.Context, program *vm.Program, object, values map[string]any) (bool, error) {
	env := ScopeEnv{
		Object: object,
		Values: values,
	}

	if user, ok := contexts.GetUser(ctx); ok {
		env.UserID = user.ID
		env.IsSuperuser = user.IsSuperuser
	}

	if env.Object == nil {
		env.Object = map[string]any{}
	}

	if env.Values == nil {
		env.Values = map[string]any{}
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate scope expression: %w", err)
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("scope expression returned %T, want bool", result)
	}

	return ok, nil
}

package permissions

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/scopegate/scopegate/internal/scopes"
)

// Relation declares a scope in terms of the existence of a relation to
// another model. This is useful when a model may belong to multiple other
// kinds of models and access should be restricted to the objects belonging
// to one specific kind.
//
// Two forms are supported:
//
//   - Column: the scope passes when the named foreign-key column of the
//     object is not null.
//   - JoinTable/ForeignColumn/LocalColumn: the scope passes when a row
//     exists in JoinTable whose ForeignColumn equals the object's
//     LocalColumn.
type Relation struct {
	Column string

	JoinTable     string
	ForeignColumn string
	LocalColumn   string
}

// RelationScopes maps scope slugs to relation declarations for one model
// table.
type RelationScopes struct {
	table     string
	relations map[scopes.ScopeSlug]Relation
}

// NewRelationScopes declares relation scopes for the model stored in table.
func NewRelationScopes(table string, relations map[scopes.ScopeSlug]Relation) *RelationScopes {
	return &RelationScopes{table: table, relations: relations}
}

// Has reports whether the slug is declared.
func (r *RelationScopes) Has(slug scopes.ScopeSlug) bool {
	_, ok := r.relations[slug]
	return ok
}

// ViewPredicate builds the query predicate for a relation scope.
func (r *RelationScopes) ViewPredicate(slug scopes.ScopeSlug) (sq.Sqlizer, error) {
	rel, ok := r.relations[slug]
	if !ok {
		return nil, &UnexpectedScopeError{Scope: slug, Model: r.table}
	}

	if rel.Column != "" {
		return sq.NotEq{rel.Column: nil}, nil
	}

	if rel.JoinTable == "" || rel.ForeignColumn == "" || rel.LocalColumn == "" {
		return nil, fmt.Errorf("relation scope %s on %s is incompletely declared", slug, r.table)
	}

	return sq.Expr(fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s)",
		rel.JoinTable, rel.JoinTable, rel.ForeignColumn, r.table, rel.LocalColumn,
	)), nil
}

// WriteCheck decides a write action for a relation scope. When the
// relation column is absent from both the incoming values and the object,
// the check passes and the decision is left to validation, matching the
// view that incomplete input should fail validation rather than
// permissions.
func (r *RelationScopes) WriteCheck(slug scopes.ScopeSlug, object, values map[string]any) (bool, error) {
	rel, ok := r.relations[slug]
	if !ok {
		return false, &UnexpectedScopeError{Scope: slug, Model: r.table}
	}

	column := rel.Column
	if column == "" {
		column = rel.LocalColumn
	}

	if column == "" {
		return false, fmt.Errorf("relation scope %s on %s is incompletely declared", slug, r.table)
	}

	if v, ok := values[column]; ok {
		return v != nil, nil
	}

	if v, ok := object[column]; ok {
		return v != nil, nil
	}

	return true, nil // Leave for validation
}

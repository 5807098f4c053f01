package rest

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/fields"
	"github.com/scopegate/scopegate/internal/permissions"
	"github.com/scopegate/scopegate/internal/scopes"
)

// Application scopes used by the built-in models.
const (
	// ScopePublished grants access to published notes.
	ScopePublished scopes.ScopeSlug = "published"
	// ScopeAuthor grants writes on notes the user authored.
	ScopeAuthor scopes.ScopeSlug = "author"
	// ScopeOwnPublished grants access to the user's own published notes.
	ScopeOwnPublished scopes.ScopeSlug = "own_published"
	// ScopeOwned grants access to notes that have an owner at all.
	ScopeOwned scopes.ScopeSlug = "owned"
)

func init() {
	scopes.Register(scopes.Scope{Slug: ScopePublished, Description: "Access to published notes"})
	scopes.Register(scopes.Scope{Slug: ScopeAuthor, Description: "Writes on notes the user authored"})
	scopes.Register(scopes.Scope{Slug: ScopeOwnPublished, Description: "Access to the user's own published notes"})
	scopes.Register(scopes.Scope{Slug: ScopeOwned, Description: "Access to notes that have an owner"})
}

var errNoUser = errors.New("no authenticated user in context")

// DefaultModels returns the models served out of the box: the account
// model and the note model that exercises every scope form.
func DefaultModels(table permissions.Table) []Model {
	return []Model{UserModel(table), NoteModel(table)}
}

// UserModel exposes accounts. The "own" scope restricts a user to their
// own record; passwords are never part of the declared columns.
func UserModel(table permissions.Table) Model {
	checker := permissions.NewChecker(table, "auth", "user",
		permissions.WithViewScope(scopes.ScopeOwn, func(ctx context.Context) (sq.Sqlizer, error) {
			user, ok := contexts.GetUser(ctx)
			if !ok {
				return nil, errNoUser
			}

			return sq.Eq{"id": user.ID}, nil
		}),
		permissions.WithWriteScope(scopes.ActionChange, scopes.ScopeOwn, func(ctx context.Context, object, values map[string]any) (bool, error) {
			user, ok := contexts.GetUser(ctx)
			if !ok {
				return false, nil
			}

			return columnEquals(object, "id", user.ID), nil
		}),
	)

	return Model{
		Name:    "users",
		Table:   "users",
		Columns: []string{"id", "email", "is_superuser", "created_at"},
		Checker: checker,
		Fields: fields.New("user", []string{"id", "email", "is_superuser", "created_at"}, map[scopes.ScopeSlug]fields.Grant{
			scopes.ScopeOwn: {
				Readable: []string{"id", "email", "is_superuser", "created_at"},
				Writable: []string{"email"},
			},
		}),
	}
}

// NoteModel exposes notes. It wires every scope form together: an explicit
// own scope, a relation scope (owned), a static dynamic scope (published),
// an expression write scope (author), and a composed scope (own_published).
func NoteModel(table permissions.Table) Model {
	ownView := func(ctx context.Context) (sq.Sqlizer, error) {
		user, ok := contexts.GetUser(ctx)
		if !ok {
			return nil, errNoUser
		}

		return sq.Eq{"owner_id": user.ID}, nil
	}

	ownWrite := func(ctx context.Context, object, values map[string]any) (bool, error) {
		user, ok := contexts.GetUser(ctx)
		if !ok {
			return false, nil
		}

		// On add the object does not exist yet; ownership comes from the
		// incoming values.
		if object == nil {
			return columnEquals(values, "owner_id", user.ID), nil
		}

		return columnEquals(object, "owner_id", user.ID), nil
	}

	opts := []permissions.Option{
		permissions.WithViewScope(scopes.ScopeOwn, ownView),
		permissions.WithWriteScope(scopes.ActionAdd, scopes.ScopeOwn, ownWrite),
		permissions.WithWriteScope(scopes.ActionChange, scopes.ScopeOwn, ownWrite),
		permissions.WithWriteScope(scopes.ActionDelete, scopes.ScopeOwn, ownWrite),
		permissions.WithRelationScopes(permissions.NewRelationScopes("notes", map[scopes.ScopeSlug]permissions.Relation{
			ScopeOwned: {Column: "owner_id"},
		})),
		permissions.WithScopeTable(permissions.MustScopeTable(map[scopes.ScopeSlug]permissions.Definition{
			ScopePublished: {Predicate: sq.Eq{"published": true}},
			ScopeAuthor:    {Expr: `Object.owner_id == UserID`},
			ScopeOwnPublished: {
				Compose: []scopes.ScopeSlug{scopes.ScopeOwn, ScopePublished},
			},
		})),
	}

	noteColumns := []string{"id", "owner_id", "title", "body", "published", "created_at"}

	return Model{
		Name:    "notes",
		Table:   "notes",
		Columns: noteColumns,
		Checker: permissions.NewChecker(table, "notes", "note", opts...),
		Fields: fields.New("note", noteColumns, map[scopes.ScopeSlug]fields.Grant{
			scopes.ScopeOwn: {
				Readable: noteColumns,
				Writable: []string{"owner_id", "title", "body", "published"},
			},
			ScopePublished: {
				Readable: []string{"id", "owner_id", "title", "body", "published", "created_at"},
			},
			ScopeAuthor: {
				Writable: []string{"title", "body", "published"},
			},
			ScopeOwnPublished: {
				Readable: noteColumns,
			},
			ScopeOwned: {
				Readable: []string{"id", "owner_id", "title", "published"},
			},
		}),
	}
}

// DefaultPermissionTable is used when no permission table is configured.
// Everyone may read published notes; the other groups are granted to users
// directly or through roles.
func DefaultPermissionTable() permissions.Table {
	return permissions.Table{
		permissions.DefaultPermission: {
			{Permission: "notes.view_note", Scope: ScopePublished},
		},
		"notes.author": {
			{Permission: "notes.view_note", Scope: scopes.ScopeOwn},
			{Permission: "notes.add_note", Scope: scopes.ScopeOwn},
			{Permission: "notes.change_note", Scope: scopes.ScopeOwn},
			{Permission: "notes.delete_note", Scope: scopes.ScopeOwn},
		},
		"notes.editor": {
			{Permission: "notes.view_note", Scope: scopes.ScopeAll},
			{Permission: "notes.change_note", Scope: ScopeAuthor},
		},
		"auth.self": {
			{Permission: "auth.view_user", Scope: scopes.ScopeOwn},
			{Permission: "auth.change_user", Scope: scopes.ScopeOwn},
		},
	}
}

// columnEquals compares a row value against an id, tolerating the numeric
// types produced by database scans and JSON decoding.
func columnEquals(row map[string]any, column string, id int64) bool {
	if row == nil {
		return false
	}

	switch v := row[column].(type) {
	case int64:
		return v == id
	case int:
		return int64(v) == id
	case float64:
		return int64(v) == id
	default:
		return false
	}
}

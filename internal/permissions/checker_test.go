package permissions

import (
	"context"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopegate/scopegate/internal/authz"
	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/scopes"
	"github.com/scopegate/scopegate/internal/storage"
)

func testTable() Table {
	return Table{
		DefaultPermission: {
			{Permission: "notes.view_note", Scope: "published"},
		},
		"notes.author": {
			{Permission: "notes.view_note", Scope: "own"},
			{Permission: "notes.add_note", Scope: "own"},
			{Permission: "notes.change_note", Scope: "own"},
			{Permission: "notes.delete_note", Scope: "own"},
		},
		"notes.exporter": {
			{Permission: "notes.export_note"},
		},
		"notes.broken_exporter": {
			{Permission: "notes.export_note", Scope: "own"},
		},
	}
}

func testChecker(opts ...Option) *Checker {
	base := []Option{
		WithViewScope("own", func(ctx context.Context) (sq.Sqlizer, error) {
			user, ok := contexts.GetUser(ctx)
			if !ok {
				return nil, assert.AnError
			}

			return sq.Eq{"owner_id": user.ID}, nil
		}),
		WithViewScope("published", func(ctx context.Context) (sq.Sqlizer, error) {
			return sq.Eq{"published": true}, nil
		}),
		WithWriteScope(scopes.ActionChange, "own", func(ctx context.Context, object, values map[string]any) (bool, error) {
			user, ok := contexts.GetUser(ctx)
			if !ok {
				return false, nil
			}

			return object["owner_id"] == user.ID, nil
		}),
		WithWriteScope(scopes.ActionAdd, "own", func(ctx context.Context, object, values map[string]any) (bool, error) {
			user, ok := contexts.GetUser(ctx)
			if !ok {
				return false, nil
			}

			return values["owner_id"] == user.ID, nil
		}),
	}

	return NewChecker(testTable(), "notes", "note", append(base, opts...)...)
}

func userCtx(user *storage.User) context.Context {
	return contexts.WithUser(context.Background(), user)
}

func TestCheckerScopes(t *testing.T) {
	checker := testChecker()

	t.Run("superuser resolves to all", func(t *testing.T) {
		granted, err := checker.Scopes(userCtx(&storage.User{ID: 1, IsSuperuser: true}), scopes.ActionView)
		require.NoError(t, err)
		assert.Equal(t, []scopes.ScopeSlug{scopes.ScopeAll}, granted)
	})

	t.Run("system principal resolves to all", func(t *testing.T) {
		granted, err := checker.Scopes(authz.NewSystemContext(context.Background()), scopes.ActionDelete)
		require.NoError(t, err)
		assert.Equal(t, []scopes.ScopeSlug{scopes.ScopeAll}, granted)
	})

	t.Run("bypass resolves to all", func(t *testing.T) {
		ctx := authz.WithSystemBypass(context.Background(), "test")

		granted, err := checker.Scopes(ctx, scopes.ActionChange)
		require.NoError(t, err)
		assert.Equal(t, []scopes.ScopeSlug{scopes.ScopeAll}, granted)
	})

	t.Run("anonymous holds the default group", func(t *testing.T) {
		granted, err := checker.Scopes(context.Background(), scopes.ActionView)
		require.NoError(t, err)
		assert.Equal(t, []scopes.ScopeSlug{"published"}, granted)
	})

	t.Run("user permissions add to the default group", func(t *testing.T) {
		user := &storage.User{ID: 5, Permissions: []string{"notes.author"}}

		granted, err := checker.Scopes(userCtx(user), scopes.ActionView)
		require.NoError(t, err)
		assert.ElementsMatch(t, []scopes.ScopeSlug{"own", "published"}, granted)
	})

	t.Run("role permissions count", func(t *testing.T) {
		user := &storage.User{ID: 5, Roles: []storage.Role{{Name: "authors", Permissions: []string{"notes.author"}}}}

		granted, err := checker.Scopes(userCtx(user), scopes.ActionChange)
		require.NoError(t, err)
		assert.Equal(t, []scopes.ScopeSlug{"own"}, granted)
	})

	t.Run("missing permission is forbidden", func(t *testing.T) {
		user := &storage.User{ID: 5}

		_, err := checker.Scopes(userCtx(user), scopes.ActionDelete)
		require.Error(t, err)

		var forbidden *ForbiddenError
		require.ErrorAs(t, err, &forbidden)
		assert.Equal(t, "notes.delete_note", forbidden.Permission)
		assert.True(t, IsForbidden(err))
	})

	t.Run("custom action without scopes", func(t *testing.T) {
		user := &storage.User{ID: 5, Permissions: []string{"notes.exporter"}}

		granted, err := checker.Scopes(userCtx(user), "export")
		require.NoError(t, err)
		assert.Empty(t, granted)
	})

	t.Run("custom action with scopes is an error", func(t *testing.T) {
		user := &storage.User{ID: 5, Permissions: []string{"notes.broken_exporter"}}

		_, err := checker.Scopes(userCtx(user), "export")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scoping is only possible for view, add, change and delete")
	})

	t.Run("parsed permissions are cached per request", func(t *testing.T) {
		user := &storage.User{ID: 5, Permissions: []string{"notes.author"}}
		ctx := contexts.WithScoping(userCtx(user))

		_, err := checker.Scopes(ctx, scopes.ActionView)
		require.NoError(t, err)

		cached, ok := contexts.GetParsedPermissions(ctx)
		require.True(t, ok)
		assert.Contains(t, cached, "notes.view_note")
	})
}

func TestCheckerScopeView(t *testing.T) {
	checker := testChecker()

	t.Run("single scope predicate", func(t *testing.T) {
		// A table without a default grant, so only "own" applies.
		checker := NewChecker(Table{
			"notes.author": {{Permission: "notes.view_note", Scope: "own"}},
		}, "notes", "note", WithViewScope("own", func(ctx context.Context) (sq.Sqlizer, error) {
			return sq.Eq{"owner_id": int64(9)}, nil
		}))

		ctx := userCtx(&storage.User{ID: 9, Permissions: []string{"notes.author"}})

		pred, err := checker.ScopeView(ctx)
		require.NoError(t, err)

		sql, args, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "owner_id = ?", sql)
		assert.Equal(t, []any{int64(9)}, args)
	})

	t.Run("scopes union with OR", func(t *testing.T) {
		user := &storage.User{ID: 9, Permissions: []string{"notes.author"}}

		pred, err := checker.ScopeView(userCtx(user))
		require.NoError(t, err)

		sql, _, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "(owner_id = ? OR published = ?)", sql)
	})

	t.Run("all scope matches everything", func(t *testing.T) {
		pred, err := checker.ScopeView(userCtx(&storage.User{ID: 1, IsSuperuser: true}))
		require.NoError(t, err)

		sql, _, err := pred.ToSql()
		require.NoError(t, err)
		assert.Equal(t, "id IS NOT NULL", sql)
	})

	t.Run("no granted scopes is a scoping error", func(t *testing.T) {
		empty := NewChecker(Table{
			"notes.viewer": {{Permission: "notes.view_note"}},
		}, "notes", "note")
		user := &storage.User{ID: 2, Permissions: []string{"notes.viewer"}}

		_, err := empty.ScopeView(userCtx(user))

		var scoping *ScopingError
		require.ErrorAs(t, err, &scoping)
		assert.Equal(t, "note", scoping.Model)
		assert.Equal(t, scopes.ActionView, scoping.Action)
	})

	t.Run("unimplemented scope is an error", func(t *testing.T) {
		broken := NewChecker(Table{
			"notes.viewer": {{Permission: "notes.view_note", Scope: "mystery"}},
		}, "notes", "note")
		user := &storage.User{ID: 2, Permissions: []string{"notes.viewer"}}

		_, err := broken.ScopeView(userCtx(user))

		var unexpected *UnexpectedScopeError
		require.ErrorAs(t, err, &unexpected)
		assert.Equal(t, scopes.ScopeSlug("mystery"), unexpected.Scope)
	})

	t.Run("records view scoping", func(t *testing.T) {
		ctx := contexts.WithScoping(userCtx(&storage.User{ID: 1, IsSuperuser: true}))

		_, err := checker.ScopeView(ctx)
		require.NoError(t, err)

		rec, ok := contexts.GetScoping(ctx)
		require.True(t, ok)
		assert.True(t, rec.Checked())
		assert.True(t, rec.Scoped(scopes.ActionView))
	})
}

func TestCheckerScopeWrite(t *testing.T) {
	checker := testChecker()
	author := &storage.User{ID: 9, Permissions: []string{"notes.author"}}

	t.Run("granting scope allows change", func(t *testing.T) {
		err := checker.ScopeChange(userCtx(author), map[string]any{"owner_id": int64(9)}, map[string]any{"title": "x"})
		assert.NoError(t, err)
	})

	t.Run("denying scope is a scoping error", func(t *testing.T) {
		err := checker.ScopeChange(userCtx(author), map[string]any{"owner_id": int64(4)}, map[string]any{"title": "x"})

		var scoping *ScopingError
		require.ErrorAs(t, err, &scoping)
		assert.Equal(t, scopes.ActionChange, scoping.Action)
		assert.True(t, IsForbidden(err))
	})

	t.Run("add checks the incoming values", func(t *testing.T) {
		err := checker.ScopeAdd(userCtx(author), map[string]any{"owner_id": int64(9)})
		assert.NoError(t, err)

		err = checker.ScopeAdd(userCtx(author), map[string]any{"owner_id": int64(1)})
		assert.Error(t, err)
	})

	t.Run("superuser writes pass", func(t *testing.T) {
		err := checker.ScopeDelete(userCtx(&storage.User{ID: 1, IsSuperuser: true}), map[string]any{"owner_id": int64(4)})
		assert.NoError(t, err)
	})

	t.Run("records write scoping", func(t *testing.T) {
		ctx := contexts.WithScoping(userCtx(author))

		err := checker.ScopeChange(ctx, map[string]any{"owner_id": int64(9)}, nil)
		require.NoError(t, err)

		rec, ok := contexts.GetScoping(ctx)
		require.True(t, ok)
		assert.True(t, rec.Scoped(scopes.ActionChange))
		assert.False(t, rec.Scoped(scopes.ActionDelete))
	})

	t.Run("change list scopes every object", func(t *testing.T) {
		ctx := contexts.WithScoping(userCtx(author))

		objects := []map[string]any{
			{"owner_id": int64(9)},
			{"owner_id": int64(9)},
		}

		require.NoError(t, checker.ScopeChangeList(ctx, objects, nil))

		objects = append(objects, map[string]any{"owner_id": int64(2)})
		assert.Error(t, checker.ScopeChangeList(ctx, objects, nil))
	})

	t.Run("empty change list still records scoping", func(t *testing.T) {
		ctx := contexts.WithScoping(userCtx(author))

		require.NoError(t, checker.ScopeChangeList(ctx, nil, nil))

		rec, _ := contexts.GetScoping(ctx)
		assert.True(t, rec.Scoped(scopes.ActionChange))
	})
}

func TestCheckerCombineAll(t *testing.T) {
	table := Table{
		"notes.strict": {
			{Permission: "notes.change_note", Scope: "own"},
			{Permission: "notes.change_note", Scope: "recent"},
		},
	}

	checker := NewChecker(table, "notes", "note",
		WithCombine(scopes.ActionChange, CombineAll),
		WithWriteScope(scopes.ActionChange, "own", func(ctx context.Context, object, values map[string]any) (bool, error) {
			return object["owner_id"] == int64(9), nil
		}),
		WithWriteScope(scopes.ActionChange, "recent", func(ctx context.Context, object, values map[string]any) (bool, error) {
			return object["recent"] == true, nil
		}),
	)

	user := &storage.User{ID: 9, Permissions: []string{"notes.strict"}}

	err := checker.ScopeChange(userCtx(user), map[string]any{"owner_id": int64(9), "recent": true}, nil)
	assert.NoError(t, err)

	err = checker.ScopeChange(userCtx(user), map[string]any{"owner_id": int64(9), "recent": false}, nil)
	assert.Error(t, err, "every scope must pass under CombineAll")
}

func TestCheckerPermsVia(t *testing.T) {
	table := Table{
		"notes.author": {{Permission: "notes.view_note", Scope: "all"}},
	}

	// The revision model shares the note model's permission strings.
	checker := NewChecker(table, "notes", "revision", WithPermsVia("note"))
	user := &storage.User{ID: 1, Permissions: []string{"notes.author"}}

	granted, err := checker.Scopes(userCtx(user), scopes.ActionView)
	require.NoError(t, err)
	assert.Equal(t, []scopes.ScopeSlug{scopes.ScopeAll}, granted)
}

package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/server/middleware"
	"github.com/scopegate/scopegate/internal/storage"
)

type fixture struct {
	store    *storage.Store
	registry *Registry

	alice  *storage.User
	bob    *storage.User
	editor *storage.User

	alicePublished int64
	aliceDraft     int64
	bobPublished   int64
	bobDraft       int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := storage.Config{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)",
	}

	db, err := storage.Open(cfg)
	require.NoError(t, err)

	require.NoError(t, storage.RunMigrations(context.Background(), db, cfg.Driver))

	store := storage.New(db, cfg.Driver)
	t.Cleanup(func() { _ = store.Close() })

	registry, err := NewRegistry(RegistryParams{Store: store, Table: DefaultPermissionTable()})
	require.NoError(t, err)

	f := &fixture{store: store, registry: registry}

	ctx := context.Background()

	f.alice = f.createUser(t, "alice@example.com", []string{"notes.author", "auth.self"})
	f.bob = f.createUser(t, "bob@example.com", []string{"notes.author", "auth.self"})
	f.editor = f.createUser(t, "editor@example.com", []string{"notes.editor"})

	insert := func(owner int64, title string, published bool) int64 {
		id, err := store.InsertRow(ctx, "notes", map[string]any{
			"owner_id":  owner,
			"title":     title,
			"body":      "body of " + title,
			"published": published,
		})
		require.NoError(t, err)

		return id
	}

	f.alicePublished = insert(f.alice.ID, "alice published", true)
	f.aliceDraft = insert(f.alice.ID, "alice draft", false)
	f.bobPublished = insert(f.bob.ID, "bob published", true)
	f.bobDraft = insert(f.bob.ID, "bob draft", false)

	return f
}

func (f *fixture) createUser(t *testing.T, email string, perms []string) *storage.User {
	t.Helper()

	user, err := f.store.CreateUser(context.Background(), &storage.User{
		Email:       email,
		Password:    "hashed",
		Permissions: perms,
	})
	require.NoError(t, err)

	return user
}

// router builds the API surface as served in production: the caller is
// authenticated up front and the scoping guard audits every response.
func (f *fixture) router(user *storage.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	engine := gin.New()

	engine.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if user != nil {
			ctx = contexts.WithUser(ctx, user)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	engine.Use(middleware.WithScopingGuard())

	f.registry.Mount(engine.Group("/"))

	return engine
}

func (f *fixture) do(t *testing.T, user *storage.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	f.router(user).ServeHTTP(w, req)

	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return body
}

func listTotal(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()

	body := decodeBody(t, w)
	meta, ok := body["meta"].(map[string]any)
	require.True(t, ok)

	return int(meta["total_records"].(float64))
}

func TestResourceList(t *testing.T) {
	f := newFixture(t)

	t.Run("anonymous sees published notes only", func(t *testing.T) {
		w := f.do(t, nil, http.MethodGet, "/notes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, listTotal(t, w))
	})

	t.Run("author sees own and published", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodGet, "/notes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3, listTotal(t, w))
	})

	t.Run("editor sees everything", func(t *testing.T) {
		w := f.do(t, f.editor, http.MethodGet, "/notes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 4, listTotal(t, w))
	})

	t.Run("superuser sees everything", func(t *testing.T) {
		super := &storage.User{ID: 999, Email: "root@example.com", IsSuperuser: true}

		w := f.do(t, super, http.MethodGet, "/notes", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 4, listTotal(t, w))
	})
}

func TestResourceGet(t *testing.T) {
	f := newFixture(t)

	t.Run("published note is public", func(t *testing.T) {
		w := f.do(t, nil, http.MethodGet, "/notes/"+strconv.FormatInt(f.alicePublished, 10), "")
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "alice published", data["title"])
	})

	t.Run("invisible note reads as not found", func(t *testing.T) {
		w := f.do(t, nil, http.MethodGet, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("owner sees own draft", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodGet, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), "")
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "alice draft", data["title"])
	})

	t.Run("invalid id", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodGet, "/notes/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceCreate(t *testing.T) {
	f := newFixture(t)

	t.Run("author creates own note", func(t *testing.T) {
		body := `{"owner_id": ` + strconv.FormatInt(f.alice.ID, 10) + `, "title": "new", "body": "text", "published": false}`

		w := f.do(t, f.alice, http.MethodPost, "/notes", body)
		require.Equal(t, http.StatusCreated, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		id := int64(data["id"].(float64))

		row, err := f.store.GetRow(context.Background(), "notes", []string{"id", "title"}, sq.Eq{"id": id})
		require.NoError(t, err)
		assert.Equal(t, "new", row["title"])
	})

	t.Run("author cannot create for someone else", func(t *testing.T) {
		body := `{"owner_id": ` + strconv.FormatInt(f.bob.ID, 10) + `, "title": "forged"}`

		w := f.do(t, f.alice, http.MethodPost, "/notes", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous cannot create", func(t *testing.T) {
		w := f.do(t, nil, http.MethodPost, "/notes", `{"title": "drive-by"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unwritable field rejected", func(t *testing.T) {
		body := `{"owner_id": ` + strconv.FormatInt(f.alice.ID, 10) + `, "title": "x", "created_at": "2026-01-01T00:00:00Z"}`

		w := f.do(t, f.alice, http.MethodPost, "/notes", body)
		require.Equal(t, http.StatusForbidden, w.Code)

		errObj := decodeBody(t, w)["error"].(map[string]any)
		assert.Equal(t, "FieldsNotWritable", errObj["type"])
		assert.Equal(t, []any{"created_at"}, errObj["fields"])
	})

	t.Run("invalid body", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPost, "/notes", `not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourceUpdate(t *testing.T) {
	f := newFixture(t)

	t.Run("owner updates own draft", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), `{"title": "renamed"}`)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "renamed", data["title"])
	})

	t.Run("empty body is a no-op", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), `{}`)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "renamed", data["title"])
	})

	t.Run("only undeclared columns is a no-op", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), `{"bogus": 1}`)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "renamed", data["title"])
	})

	t.Run("visible but not writable", func(t *testing.T) {
		// Bob's published note is visible to alice, but she holds no
		// scope that allows changing it.
		w := f.do(t, f.alice, http.MethodPut, "/notes/"+strconv.FormatInt(f.bobPublished, 10), `{"title": "hijacked"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("editor change is limited to authored notes", func(t *testing.T) {
		w := f.do(t, f.editor, http.MethodPut, "/notes/"+strconv.FormatInt(f.bobDraft, 10), `{"title": "edited"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("editor updates an authored note", func(t *testing.T) {
		id, err := f.store.InsertRow(context.Background(), "notes", map[string]any{
			"owner_id":  f.editor.ID,
			"title":     "editorial",
			"body":      "draft",
			"published": false,
		})
		require.NoError(t, err)

		w := f.do(t, f.editor, http.MethodPut, "/notes/"+strconv.FormatInt(id, 10), `{"published": true}`)
		require.Equal(t, http.StatusOK, w.Code)

		// sqlite hands booleans back as integers.
		data := decodeBody(t, w)["data"].(map[string]any)
		assert.EqualValues(t, 1, data["published"])
	})

	t.Run("unwritable field rejected", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), `{"created_at": "2026-01-01T00:00:00Z"}`)
		require.Equal(t, http.StatusForbidden, w.Code)

		errObj := decodeBody(t, w)["error"].(map[string]any)
		assert.Equal(t, "FieldsNotWritable", errObj["type"])
	})
}

func TestResourceDelete(t *testing.T) {
	f := newFixture(t)

	t.Run("owner deletes own note", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodDelete, "/notes/"+strconv.FormatInt(f.aliceDraft, 10), "")
		require.Equal(t, http.StatusNoContent, w.Code)

		_, err := f.store.GetRow(context.Background(), "notes", []string{"id"}, sq.Eq{"id": f.aliceDraft})
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("visible but not deletable", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodDelete, "/notes/"+strconv.FormatInt(f.bobPublished, 10), "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous cannot delete", func(t *testing.T) {
		w := f.do(t, nil, http.MethodDelete, "/notes/"+strconv.FormatInt(f.alicePublished, 10), "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestUsersResource(t *testing.T) {
	f := newFixture(t)

	t.Run("list is limited to own account", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodGet, "/users", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, 1, listTotal(t, w))

		data := decodeBody(t, w)["data"].([]any)
		assert.Equal(t, "alice@example.com", data[0].(map[string]any)["email"])
	})

	t.Run("anonymous is forbidden", func(t *testing.T) {
		w := f.do(t, nil, http.MethodGet, "/users", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("other accounts read as not found", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodGet, "/users/"+strconv.FormatInt(f.bob.ID, 10), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("change own email", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/users/"+strconv.FormatInt(f.alice.ID, 10), `{"email": "alice@new.example.com"}`)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "alice@new.example.com", data["email"])
	})

	t.Run("superuser flag is not writable", func(t *testing.T) {
		w := f.do(t, f.alice, http.MethodPut, "/users/"+strconv.FormatInt(f.alice.ID, 10), `{"is_superuser": true}`)
		require.Equal(t, http.StatusForbidden, w.Code)

		errObj := decodeBody(t, w)["error"].(map[string]any)
		assert.Equal(t, "FieldsNotWritable", errObj["type"])
	})
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	t.Run("default models registered in order", func(t *testing.T) {
		resources := f.registry.Resources()
		require.Len(t, resources, 2)
		assert.Equal(t, "users", resources[0].Model().Name)
		assert.Equal(t, "notes", resources[1].Model().Name)
	})

	t.Run("lookup", func(t *testing.T) {
		assert.NotNil(t, f.registry.Resource("notes"))
		assert.Nil(t, f.registry.Resource("missing"))
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		err := f.registry.Add(Model{Name: "notes"})
		assert.ErrorContains(t, err, "already registered")
	})
}

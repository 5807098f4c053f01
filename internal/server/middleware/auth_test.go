package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/server/biz"
	"github.com/scopegate/scopegate/internal/storage"
)

func testAuthService(t *testing.T) (*biz.AuthService, *storage.Store) {
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

	svc, err := biz.NewAuthService(biz.AuthServiceParams{Store: store, Config: biz.AuthConfig{}})
	require.NoError(t, err)

	return svc, store
}

type errorBody struct {
	Error struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Token     string `json:"token"`
		ExpiredAt string `json:"expired_at"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return body
}

func TestWithTokenAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc, store := testAuthService(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, &storage.User{Email: "alice@example.com", Password: "x"})
	require.NoError(t, err)

	token, err := svc.IssueToken(ctx, user.ID)
	require.NoError(t, err)

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(WithTokenAuth(svc))
		router.GET("/whoami", func(c *gin.Context) {
			if u, ok := contexts.GetUser(c.Request.Context()); ok {
				c.JSON(http.StatusOK, gin.H{"user_id": u.ID})
				return
			}

			c.JSON(http.StatusOK, gin.H{"user_id": nil})
		})

		return router
	}

	serve := func(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		return w
	}

	t.Run("no header passes through unauthenticated", func(t *testing.T) {
		w := serve(newRouter(), "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":null}`, w.Body.String())
	})

	t.Run("other auth type passes through", func(t *testing.T) {
		w := serve(newRouter(), "Bearer something")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":null}`, w.Body.String())
	})

	t.Run("valid token authenticates", func(t *testing.T) {
		w := serve(newRouter(), "Token "+token.Token)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]int64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, user.ID, body["user_id"])
	})

	t.Run("unknown token", func(t *testing.T) {
		w := serve(newRouter(), "Token deadbeef")
		assert.Equal(t, http.StatusNotFound, w.Code)

		body := decodeError(t, w)
		assert.Equal(t, "TokenNotFound", body.Error.Type)
		assert.Equal(t, "Token not found.", body.Error.Message)
		assert.Equal(t, "deadbeef", body.Error.Token)
	})

	t.Run("expired token", func(t *testing.T) {
		expiresAt := time.Now().Add(-time.Hour)

		stale, err := store.CreateToken(ctx, user.ID, "stale-token", expiresAt)
		require.NoError(t, err)

		w := serve(newRouter(), "Token "+stale.Token)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		body := decodeError(t, w)
		assert.Equal(t, "TokenExpired", body.Error.Type)
		assert.Equal(t, stale.Token, body.Error.Token)

		parsed, err := time.Parse(biz.TokenExpiredTimeFormat, body.Error.ExpiredAt)
		require.NoError(t, err)
		assert.WithinDuration(t, expiresAt, parsed, time.Second)

		_, err = store.GetToken(ctx, stale.Token)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestWithJWTAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc, store := testAuthService(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, &storage.User{Email: "alice@example.com", Password: "x"})
	require.NoError(t, err)

	jwtString, err := svc.GenerateJWTToken(ctx, user)
	require.NoError(t, err)

	router := gin.New()
	router.Use(WithJWTAuth(svc))
	router.GET("/whoami", func(c *gin.Context) {
		u, _ := contexts.GetUser(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": u.ID})
	})

	serve := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		return w
	}

	t.Run("missing header rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("").Code)
	})

	t.Run("token auth type rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Token abc").Code)
	})

	t.Run("invalid jwt rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("Bearer not-a-jwt").Code)
	})

	t.Run("valid jwt authenticates", func(t *testing.T) {
		w := serve("Bearer " + jwtString)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]int64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, user.ID, body["user_id"])
	})
}

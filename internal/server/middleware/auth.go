package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scopegate/scopegate/internal/authz"
	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/server/biz"
)

const (
	tokenPrefix  = "Token "
	bearerPrefix = "Bearer "
)

// WithTokenAuth authenticates requests carrying a "Token <value>"
// Authorization header against the stored tokens. Requests without the
// header, or with another auth type, pass through unauthenticated.
func WithTokenAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := contexts.GetUser(c.Request.Context()); ok {
			// Already authenticated
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, tokenPrefix) {
			c.Next()
			return
		}

		value := strings.TrimPrefix(header, tokenPrefix)

		user, token, err := auth.AuthenticateToken(c.Request.Context(), value)
		if err != nil {
			AbortWithDomainError(c, err)
			return
		}

		ctx := contexts.WithUser(c.Request.Context(), user)
		ctx = contexts.WithToken(ctx, token)
		ctx = authz.NewTokenContext(ctx, token.ID, user.ID)

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// WithJWTAuth authenticates requests with a "Bearer <jwt>" Authorization
// header. Unlike token auth, a missing or invalid JWT rejects the request.
func WithJWTAuth(auth *biz.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, bearerPrefix) {
			AbortWithError(c, http.StatusUnauthorized, biz.ErrInvalidJWT)
			return
		}

		user, err := auth.AuthenticateJWTToken(c.Request.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			AbortWithDomainError(c, err)
			return
		}

		ctx := contexts.WithUser(c.Request.Context(), user)
		ctx = authz.NewUserContext(ctx, user.ID)

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

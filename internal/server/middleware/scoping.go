package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scopegate/scopegate/internal/contexts"
	"github.com/scopegate/scopegate/internal/log"
	"github.com/scopegate/scopegate/internal/permissions"
)

// WithScopingGuard attaches a scoping record to the request and, after the
// handler ran successfully, verifies that permissions were checked and the
// method-appropriate scoping was done. A handler that skipped enforcement
// is a bug; the guard turns it into a loud failure instead of a silent
// data leak.
func WithScopingGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := contexts.WithScoping(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// Error responses need no scoping proof.
		if c.Writer.Status() >= 300 {
			return
		}

		if err := permissions.VerifyScoping(ctx, c.Request.Method); err != nil {
			// Once the handler flushed a success body the response cannot be
			// replaced, so the violation is only recorded and logged.
			log.Error(ctx, "scoping guard violation",
				log.String("method", c.Request.Method),
				log.String("path", c.Request.URL.Path),
				log.Bool("response_written", c.Writer.Written()),
				log.Cause(err),
			)

			contexts.AddError(ctx, err)

			if !c.Writer.Written() {
				AbortWithError(c, http.StatusInternalServerError, err)
			}
		}
	}
}

// NoScopingRequired marks the request as scoped without checking. Only for
// routes that operate outside the model permission system entirely.
func NoScopingRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		permissions.MarkNoScopingRequired(c.Request.Context(), c.Request.Method)
		c.Next()
	}
}

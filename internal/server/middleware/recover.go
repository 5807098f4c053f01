package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/scopegate/scopegate/internal/log"
	"github.com/scopegate/scopegate/internal/objects"
)

// Recovery returns a middleware that recovers from panics in handlers,
// logs the panic with a stack trace, and responds with a 500 error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic recovered",
					log.Any("panic", r),
					log.String("path", c.Request.URL.Path),
					log.String("stack", string(debug.Stack())),
				)

				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, objects.ErrorResponse{
						Error: objects.Error{
							Type:    "InternalError",
							Message: "Internal server error.",
						},
					})
				} else {
					c.Abort()
				}
			}
		}()

		c.Next()
	}
}

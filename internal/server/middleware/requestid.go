package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scopegate/scopegate/internal/contexts"
)

const (
	// RequestIDHeader carries the per-request identifier in responses.
	RequestIDHeader = "SG-Request-Id"
	// TraceIDHeader lets callers propagate a trace identifier across services.
	TraceIDHeader = "SG-Trace-Id"
)

// WithRequestTracking saves the trace ID and request ID to the request context
// so the logger can include them in subsequent log entries.
func WithRequestTracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Use the trace header from the request first.
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		// Generate a fresh request ID for each request.
		requestID := uuid.NewString()
		c.Header(RequestIDHeader, requestID)

		ctx := contexts.WithTraceID(c.Request.Context(), traceID)
		ctx = contexts.WithRequestID(ctx, requestID)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

package contexts

import (
	"context"

	"github.com/scopegate/scopegate/internal/storage"
)

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, user *storage.User) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.User = user
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetUser retrieves the authenticated user from the context.
func GetUser(ctx context.Context) (*storage.User, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	return container.User, container.User != nil
}

// WithToken stores the auth token entity in the context.
func WithToken(ctx context.Context, token *storage.Token) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.Token = token
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetToken retrieves the auth token entity from the context.
func GetToken(ctx context.Context) (*storage.Token, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	return container.Token, container.Token != nil
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.RequestID = &requestID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithTraceID stores the trace id in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	container := getContainer(ctx)
	container.mu.Lock()
	container.TraceID = &traceID
	container.mu.Unlock()

	return withContainer(ctx, container)
}

// GetTraceID retrieves the trace id from the context.
func GetTraceID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	if container.TraceID != nil {
		return *container.TraceID, true
	}

	return "", false
}

// AddError records an error on the request for access logging.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	container := getContainer(ctx)
	container.mu.Lock()
	container.Errors = append(container.Errors, err)
	container.mu.Unlock()
}

// GetErrors returns the errors recorded on the request.
func GetErrors(ctx context.Context) []error {
	container := getContainer(ctx)
	container.mu.RLock()
	defer container.mu.RUnlock()

	errs := make([]error, len(container.Errors))
	copy(errs, container.Errors)

	return errs
}

// Package contexts carries per-request values: the authenticated user or
// token, request/trace identifiers, collected errors, and the scoping
// record that proves permission checks actually ran.
package contexts

import (
	"context"
	"sync"

	"github.com/scopegate/scopegate/internal/scopes"
	"github.com/scopegate/scopegate/internal/storage"
)

// ContextKey defines the context key type.
type ContextKey string

// containerContextKey is used to store the context container in the context.
const containerContextKey ContextKey = "context_container"

// contextContainer contains all values in the context.
type contextContainer struct {
	RequestID   *string
	TraceID     *string
	User        *storage.User
	Token       *storage.Token
	Scoping     *ScopingRecord
	Permissions map[string][]scopes.ScopeSlug
	Errors      []error
	mu          sync.RWMutex
}

// getContainer retrieves the existing container from context, or creates a
// new one if it doesn't exist yet.
func getContainer(ctx context.Context) *contextContainer {
	if container, ok := ctx.Value(containerContextKey).(*contextContainer); ok {
		return container
	}

	return &contextContainer{}
}

// withContainer stores the container in the context (if not already stored).
func withContainer(ctx context.Context, container *contextContainer) context.Context {
	if ctx.Value(containerContextKey) == nil {
		return context.WithValue(ctx, containerContextKey, container)
	}

	return ctx
}

package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/scopegate/scopegate/internal/log"
)

// bypassKey is an unexported key type to prevent external forgery.
type bypassKey struct{}

// bypassInfo stores bypass metadata.
type bypassInfo struct {
	Reason    string
	Timestamp time.Time
	Principal Principal
}

// WithScopingBypass creates a local scoping-bypass context. Only System or
// Test principals may call it. The scoping guard and the permission
// checker treat a bypassed context as fully scoped.
// reason must be a stable audit identifier (e.g. "token-auth-lookup").
func WithScopingBypass(ctx context.Context, reason string) (context.Context, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return nil, fmt.Errorf("authz: WithScopingBypass requires a principal in context")
	}

	if !p.IsSystem() && !p.IsTest() {
		return nil, fmt.Errorf("authz: WithScopingBypass requires system or test principal, got %s", p.String())
	}

	info := bypassInfo{
		Reason:    reason,
		Timestamp: time.Now(),
		Principal: p,
	}

	recordBypassAudit(ctx, info)

	return context.WithValue(ctx, bypassKey{}, info), nil
}

// WithSystemBypass creates a System principal context with scoping bypassed.
func WithSystemBypass(ctx context.Context, reason string) context.Context {
	bypassCtx, _ := WithScopingBypass(NewSystemContext(ctx), reason)
	return bypassCtx
}

// RunWithBypass executes fn with scoping bypassed, limiting the bypass to
// the closure.
//
// Example usage:
//
//	user, err := authz.RunWithBypass(ctx, "token-auth-lookup", func(ctx context.Context) (*storage.User, error) {
//	    return store.GetUserByID(ctx, token.UserID)
//	})
func RunWithBypass[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	bypassCtx, err := WithScopingBypass(ctx, reason)
	if err != nil {
		var zero T
		return zero, err
	}

	return fn(bypassCtx)
}

// RunWithSystemBypass executes fn as the System principal with scoping
// bypassed.
func RunWithSystemBypass[T any](ctx context.Context, reason string, fn func(ctx context.Context) (T, error)) (T, error) {
	return RunWithBypass(NewSystemContext(ctx), reason, fn)
}

// IsBypassActive checks if the current context is in bypass state.
func IsBypassActive(ctx context.Context) bool {
	_, ok := ctx.Value(bypassKey{}).(bypassInfo)
	return ok
}

// BypassReason returns the active bypass reason, for audit and debugging.
func BypassReason(ctx context.Context) (string, bool) {
	info, ok := ctx.Value(bypassKey{}).(bypassInfo)
	return info.Reason, ok
}

// bypassAuditRecord represents a bypass audit record.
type bypassAuditRecord struct {
	Timestamp time.Time
	Principal string
	Reason    string
}

// auditLogger is the bypass audit logger. Can be customized via
// SetAuditLogger.
var auditLogger func(ctx context.Context, record bypassAuditRecord)

// SetAuditLogger sets a custom audit logger. If not set, the default log
// output is used.
func SetAuditLogger(fn func(ctx context.Context, record bypassAuditRecord)) {
	auditLogger = fn
}

func recordBypassAudit(ctx context.Context, info bypassInfo) {
	record := bypassAuditRecord{
		Timestamp: info.Timestamp,
		Principal: info.Principal.String(),
		Reason:    info.Reason,
	}

	if auditLogger != nil {
		auditLogger(ctx, record)
		return
	}

	log.Debug(ctx, "authz: scoping bypass",
		log.String("principal", record.Principal),
		log.String("reason", record.Reason),
	)
}

package authz

import (
	"context"
	"fmt"
)

// PrincipalType defines authorization principal types.
type PrincipalType int

const (
	// PrincipalTypeUnknown unknown principal type.
	PrincipalTypeUnknown PrincipalType = iota
	// PrincipalTypeSystem system principal (background tasks, internal operations).
	PrincipalTypeSystem
	// PrincipalTypeUser user principal (JWT session).
	PrincipalTypeUser
	// PrincipalTypeToken auth token principal.
	PrincipalTypeToken
	// PrincipalTypeTest test principal (only for test environment).
	PrincipalTypeTest
)

// String returns string representation of PrincipalType.
func (p PrincipalType) String() string {
	switch p {
	case PrincipalTypeSystem:
		return "system"
	case PrincipalTypeUser:
		return "user"
	case PrincipalTypeToken:
		return "token"
	case PrincipalTypeTest:
		return "test"
	default:
		return "unknown"
	}
}

// Principal represents the authorization identity of a request.
// Each request can only have one Principal, guaranteed by WithPrincipal's
// set-once semantics.
type Principal struct {
	Type    PrincipalType
	UserID  *int64
	TokenID *int64
}

// IsSystem checks if it is a system principal.
func (p Principal) IsSystem() bool {
	return p.Type == PrincipalTypeSystem
}

// IsUser checks if it is a user principal.
func (p Principal) IsUser() bool {
	return p.Type == PrincipalTypeUser
}

// IsToken checks if it is a token principal.
func (p Principal) IsToken() bool {
	return p.Type == PrincipalTypeToken
}

// IsTest checks if it is a test principal.
func (p Principal) IsTest() bool {
	return p.Type == PrincipalTypeTest
}

// String returns string representation of Principal (for audit logs).
func (p Principal) String() string {
	switch p.Type {
	case PrincipalTypeSystem:
		return "system"
	case PrincipalTypeUser:
		if p.UserID != nil {
			return fmt.Sprintf("user:%d", *p.UserID)
		}

		return "user:unknown"
	case PrincipalTypeToken:
		if p.TokenID != nil {
			return fmt.Sprintf("token:%d", *p.TokenID)
		}

		return "token:unknown"
	case PrincipalTypeTest:
		return "test"
	default:
		return "unknown"
	}
}

// principalKey is an unexported key type to prevent external forgery.
type principalKey struct{}

// WithPrincipal sets the Principal, returning an error on conflict.
// Ensures each context can only set the Principal once, preventing
// principal mixing.
func WithPrincipal(ctx context.Context, p Principal) (context.Context, error) {
	if existing, ok := GetPrincipal(ctx); ok {
		if !principalEqual(existing, p) {
			return ctx, fmt.Errorf("authz: principal conflict: existing=%s, new=%s", existing.String(), p.String())
		}

		return ctx, nil // Same principal, idempotent
	}

	return context.WithValue(ctx, principalKey{}, p), nil
}

func principalEqual(a, b Principal) bool {
	if a.Type != b.Type {
		return false
	}

	if !int64PtrEqual(a.UserID, b.UserID) {
		return false
	}

	return int64PtrEqual(a.TokenID, b.TokenID)
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil && b == nil {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	return *a == *b
}

// GetPrincipal reads the Principal.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// MustGetPrincipal reads the Principal, panicking if absent (used in chains
// where the principal is confirmed).
func MustGetPrincipal(ctx context.Context) Principal {
	p, ok := GetPrincipal(ctx)
	if !ok {
		panic("authz: no principal in context")
	}

	return p
}

// RequirePrincipal checks that a principal exists.
func RequirePrincipal(ctx context.Context) error {
	if _, ok := GetPrincipal(ctx); !ok {
		return fmt.Errorf("authz: no principal in context")
	}

	return nil
}

// NewUserContext creates a context with a User principal.
func NewUserContext(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{
		Type:   PrincipalTypeUser,
		UserID: &userID,
	})
}

// NewTokenContext creates a context with a Token principal.
func NewTokenContext(ctx context.Context, tokenID, userID int64) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{
		Type:    PrincipalTypeToken,
		TokenID: &tokenID,
		UserID:  &userID,
	})
}

// NewSystemContext creates a context with a System principal (for
// background tasks).
func NewSystemContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{Type: PrincipalTypeSystem})
}

// NewTestContext creates a context with a Test principal.
func NewTestContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, principalKey{}, Principal{Type: PrincipalTypeTest})
}

// RequireSystemPrincipal checks if the current principal is System,
// otherwise returns an error. Used to protect sensitive background
// operations.
func RequireSystemPrincipal(ctx context.Context) error {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return fmt.Errorf("authz: no principal in context")
	}

	if !p.IsSystem() {
		return fmt.Errorf("authz: operation requires system principal, got %s", p.String())
	}

	return nil
}

// Package authz provides the single-principal authorization model and
// controlled scoping bypass.
//
// Core concepts:
//
//   - Principal: A single authorization identity per request
//     (System/User/Token). Set via NewSystemContext, NewUserContext,
//     NewTokenContext, or WithPrincipal.
//
//   - Bypass: Controlled scoping bypass via RunWithBypass (closure,
//     preferred) or WithScopingBypass (explicit context). All bypass
//     operations are audited.
//
// Usage rules:
//
//  1. Prefer RunWithBypass closures to limit the bypass to one call.
//  2. When using WithScopingBypass, assign to bypassCtx, never ctx.
//  3. All bypass reasons must be stable strings for audit aggregation.
//  4. Background tasks must declare a System principal via NewSystemContext.
package authz

// Package identity supplies the authenticated caller for each request.
//
// The governance pipeline only sees an Identity value; how it was established
// (trusted gateway headers, bearer token) is the business of a Provider.
package identity

import (
	"context"
	"net/http"
	"strings"

	dErrors "gatekeeper/pkg/domain-errors"
)

// DefaultDepartment is recorded when the caller did not state one.
const DefaultDepartment = "unassigned"

// Identity is the already-authenticated caller. Immutable for one request.
type Identity struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Normalize trims fields and fills the department default.
func (i Identity) Normalize() Identity {
	i.UserID = strings.TrimSpace(i.UserID)
	i.Role = strings.TrimSpace(i.Role)
	i.Department = strings.TrimSpace(i.Department)
	if i.Department == "" {
		i.Department = DefaultDepartment
	}
	return i
}

// Validate requires a user and a role. Whether the role is known is the
// policy registry's decision, not ours.
func (i Identity) Validate() error {
	if i.UserID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "user identity required")
	}
	if len(i.UserID) > 256 {
		return dErrors.New(dErrors.CodeBadRequest, "user identity too long")
	}
	if i.Role == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "user role required")
	}
	return nil
}

// Provider establishes the caller identity from an inbound request.
type Provider interface {
	Identify(r *http.Request) (Identity, error)
}

type contextKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity set by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// RoleFromContext adapts FromContext for role-only guards.
func RoleFromContext(ctx context.Context) (string, bool) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return id.Role, true
}

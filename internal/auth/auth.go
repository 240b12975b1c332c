package auth

import (
	"context"

	"github.com/judyrop/catering-backend/internal/apperr"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the authenticated caller. The zero value is an anonymous caller.
type Principal struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role"`
}

func (p Principal) Authenticated() bool { return p.Subject != "" }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role == RoleAdmin }

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) Allowed() bool { return d == Allow }

// Err converts a denial into the matching apperr. Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case DenyUnauthenticated:
		return apperr.Unauthenticated("authentication required")
	case DenyForbidden:
		return apperr.Forbidden("insufficient privileges")
	default:
		return nil
	}
}

func RequireAuthenticated(p Principal) Decision {
	if !p.Authenticated() {
		return DenyUnauthenticated
	}
	return Allow
}

// RequireRole allows p when it carries role. Administrators satisfy every role.
func RequireRole(p Principal, role Role) Decision {
	if !p.Authenticated() {
		return DenyUnauthenticated
	}
	if p.Role == role || p.Role == RoleAdmin {
		return Allow
	}
	return DenyForbidden
}

type ctxKey int

const principalKey ctxKey = iota

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal stored in ctx, or the anonymous principal.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}

package auth

import (
	"context"

	"relmap/application/ports"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the authenticated caller in ctx
func WithPrincipal(ctx context.Context, p *ports.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller, if any
func PrincipalFrom(ctx context.Context) (*ports.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*ports.Principal)
	return p, ok && p != nil && p.UserID != ""
}

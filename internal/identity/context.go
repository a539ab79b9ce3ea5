package identity

import (
	"context"
	"fmt"
)

// principalKey is an unexported key type to prevent external forgery.
type principalKey struct{}

// WithPrincipal sets the Principal, returning an error if a different one is
// already present. Each context can carry the principal of exactly one
// account, preventing principal mixing across middleware layers.
func WithPrincipal(ctx context.Context, p *Principal) (context.Context, error) {
	if existing, ok := GetPrincipal(ctx); ok {
		if existing.Kind != p.Kind || existing.ID() != p.ID() {
			return ctx, fmt.Errorf("identity: principal conflict: existing=%s, new=%s", existing.String(), p.String())
		}

		return ctx, nil // Same principal, idempotent
	}

	return context.WithValue(ctx, principalKey{}, p), nil
}

// GetPrincipal reads the Principal.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// MustGetPrincipal reads the Principal, panics if absent (used in chains
// where authentication is already confirmed).
func MustGetPrincipal(ctx context.Context) *Principal {
	p, ok := GetPrincipal(ctx)
	if !ok {
		panic("identity: no principal in context")
	}

	return p
}

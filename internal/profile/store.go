// Package profile resolves account ids into typed principals and owns the
// bootstrap state machine for first sign-ins.
package profile

import (
	"context"

	"github.com/fernhill/clienthub/internal/identity"
)

// Patch carries the mutable profile fields. Nil fields are left unchanged.
type Patch struct {
	DisplayName *string
	AvatarURL   *string
}

// TeamStore persists team profiles keyed by account id.
type TeamStore interface {
	// GetTeamProfile returns ErrNotFound when no row exists.
	GetTeamProfile(ctx context.Context, accountID string) (*identity.TeamProfile, error)

	// CreateTeamProfile returns ErrConflict when a row already exists and
	// ErrVariantConflict when the account id is present in the client table.
	CreateTeamProfile(ctx context.Context, p *identity.TeamProfile) error

	// UpdateTeamProfile applies the patch. Returns ErrNotFound if absent.
	UpdateTeamProfile(ctx context.Context, accountID string, patch Patch) error

	// UpdateTeamRole changes the role. Returns ErrNotFound if absent.
	UpdateTeamRole(ctx context.Context, accountID string, role identity.TeamRole) error
}

// ClientStore persists client profiles keyed by account id, joined to the
// owning company on read.
type ClientStore interface {
	// GetClientProfile returns ErrNotFound when no row exists.
	GetClientProfile(ctx context.Context, accountID string) (*identity.ClientProfile, error)

	// CreateClientProfile returns ErrConflict when a row already exists and
	// ErrVariantConflict when the account id is present in the team table.
	// Reached only from the invitation flow.
	CreateClientProfile(ctx context.Context, p *identity.ClientProfile) error

	// UpdateClientProfile applies the patch. Returns ErrNotFound if absent.
	UpdateClientProfile(ctx context.Context, accountID string, patch Patch) error
}

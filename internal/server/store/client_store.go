package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/profile"
)

// ClientProfileStore persists client profiles joined to their company.
type ClientProfileStore struct {
	db *sql.DB
}

var _ profile.ClientStore = (*ClientProfileStore)(nil)

func NewClientProfileStore(db *sql.DB) *ClientProfileStore {
	return &ClientProfileStore{db: db}
}

// GetClientProfile returns profile.ErrNotFound when no row exists.
func (s *ClientProfileStore) GetClientProfile(ctx context.Context, accountID string) (*identity.ClientProfile, error) {
	p := &identity.ClientProfile{}

	var role string

	err := s.db.QueryRowContext(ctx,
		`SELECT p.id, p.email, p.display_name, p.role, p.can_manage_team, p.is_primary_contact,
		        p.created_at, p.updated_at, c.id, c.name
		 FROM client_profiles p
		 JOIN companies c ON c.id = p.company_id
		 WHERE p.id = ?`,
		accountID,
	).Scan(
		&p.ID, &p.Email, &p.DisplayName, &role, &p.CanManageTeam, &p.IsPrimaryContact,
		&p.CreatedAt, &p.UpdatedAt, &p.Company.ID, &p.Company.Name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read client profile: %w", err)
	}

	p.Role = identity.ClientRole(role)

	return p, nil
}

// CreateClientProfile inserts a client profile. Dual-presence against the
// team table is checked in the same transaction as the insert.
func (s *ClientProfileStore) CreateClientProfile(ctx context.Context, p *identity.ClientProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var other string

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM team_profiles WHERE id = ?`, p.ID,
	).Scan(&other)
	if err == nil {
		return profile.ErrVariantConflict
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check team profile presence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO client_profiles
		   (id, email, display_name, role, company_id, can_manage_team, is_primary_contact, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, string(p.Role), p.Company.ID,
		p.CanManageTeam, p.IsPrimaryContact, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert client profile: %w", err), profile.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return mapWriteError(fmt.Errorf("failed to commit client profile: %w", err), profile.ErrConflict)
	}

	return nil
}

// UpdateClientProfile applies the patch to the mutable fields. Client avatars
// are not stored; the avatar field of the patch is ignored here.
func (s *ClientProfileStore) UpdateClientProfile(ctx context.Context, accountID string, patch profile.Patch) error {
	query := `UPDATE client_profiles SET updated_at = ?`
	args := []any{time.Now()}

	if patch.DisplayName != nil {
		query += `, display_name = ?`
		args = append(args, *patch.DisplayName)
	}

	query += ` WHERE id = ?`
	args = append(args, accountID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update client profile: %w", err)
	}

	return requireAffected(result)
}

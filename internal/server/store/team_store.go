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

// TeamProfileStore persists team profiles in SQLite.
type TeamProfileStore struct {
	db *sql.DB
}

var _ profile.TeamStore = (*TeamProfileStore)(nil)

func NewTeamProfileStore(db *sql.DB) *TeamProfileStore {
	return &TeamProfileStore{db: db}
}

// GetTeamProfile returns profile.ErrNotFound when no row exists.
func (s *TeamProfileStore) GetTeamProfile(ctx context.Context, accountID string) (*identity.TeamProfile, error) {
	p := &identity.TeamProfile{}

	var role string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, avatar_url, role, created_at, updated_at
		 FROM team_profiles WHERE id = ?`,
		accountID,
	).Scan(&p.ID, &p.Email, &p.DisplayName, &p.AvatarURL, &role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, profile.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read team profile: %w", err)
	}

	p.Role = identity.TeamRole(role)

	return p, nil
}

// CreateTeamProfile inserts a team profile. The dual-presence check and the
// insert run in one transaction so no interleaving can leave an account id in
// both tables.
func (s *TeamProfileStore) CreateTeamProfile(ctx context.Context, p *identity.TeamProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var other string

	err = tx.QueryRowContext(ctx,
		`SELECT id FROM client_profiles WHERE id = ?`, p.ID,
	).Scan(&other)
	if err == nil {
		return profile.ErrVariantConflict
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check client profile presence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_profiles (id, email, display_name, avatar_url, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, p.AvatarURL, string(p.Role), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert team profile: %w", err), profile.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return mapWriteError(fmt.Errorf("failed to commit team profile: %w", err), profile.ErrConflict)
	}

	return nil
}

// UpdateTeamProfile applies the patch to the mutable fields.
func (s *TeamProfileStore) UpdateTeamProfile(ctx context.Context, accountID string, patch profile.Patch) error {
	query := `UPDATE team_profiles SET updated_at = ?`
	args := []any{time.Now()}

	if patch.DisplayName != nil {
		query += `, display_name = ?`
		args = append(args, *patch.DisplayName)
	}

	if patch.AvatarURL != nil {
		query += `, avatar_url = ?`
		args = append(args, *patch.AvatarURL)
	}

	query += ` WHERE id = ?`
	args = append(args, accountID)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update team profile: %w", err)
	}

	return requireAffected(result)
}

// UpdateTeamRole changes the role.
func (s *TeamProfileStore) UpdateTeamRole(ctx context.Context, accountID string, role identity.TeamRole) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE team_profiles SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), time.Now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team role: %w", err)
	}

	return requireAffected(result)
}

// requireAffected turns a zero-row update into profile.ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return profile.ErrNotFound
	}

	return nil
}

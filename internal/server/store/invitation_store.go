package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernhill/clienthub/internal/identity"
)

// Invitation is a pending or accepted client invitation. At most one pending
// invitation exists per email.
type Invitation struct {
	ID               string
	Email            string
	CompanyID        string
	Role             identity.ClientRole
	CanManageTeam    bool
	IsPrimaryContact bool
	InvitedBy        string
	CreatedAt        time.Time
	AcceptedAt       *time.Time
}

// InvitationStore persists client invitations.
type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

// CreateInvitation inserts an invitation. A second pending invitation for the
// same email returns ErrConflict.
func (s *InvitationStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations (id, email, company_id, role, can_manage_team, is_primary_contact, invited_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Email, inv.CompanyID, string(inv.Role), inv.CanManageTeam, inv.IsPrimaryContact,
		inv.InvitedBy, inv.CreatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert invitation: %w", err), ErrConflict)
	}

	return nil
}

// GetPendingInvitation fetches the pending invitation for an email, if any.
func (s *InvitationStore) GetPendingInvitation(ctx context.Context, email string) (*Invitation, error) {
	inv := &Invitation{}

	var role string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, company_id, role, can_manage_team, is_primary_contact, invited_by, created_at
		 FROM invitations WHERE email = ? AND accepted_at IS NULL`,
		email,
	).Scan(&inv.ID, &inv.Email, &inv.CompanyID, &role, &inv.CanManageTeam, &inv.IsPrimaryContact,
		&inv.InvitedBy, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read invitation: %w", err)
	}

	inv.Role = identity.ClientRole(role)

	return inv, nil
}

// MarkAccepted stamps the invitation as accepted.
func (s *InvitationStore) MarkAccepted(ctx context.Context, invitationID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = ? WHERE id = ? AND accepted_at IS NULL`,
		time.Now(), invitationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListInvitations returns invitations for a company, newest first.
func (s *InvitationStore) ListInvitations(ctx context.Context, companyID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, company_id, role, can_manage_team, is_primary_contact, invited_by, created_at, accepted_at
		 FROM invitations WHERE company_id = ? ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []Invitation

	for rows.Next() {
		var (
			inv      Invitation
			role     string
			accepted sql.NullTime
		)

		err := rows.Scan(&inv.ID, &inv.Email, &inv.CompanyID, &role, &inv.CanManageTeam,
			&inv.IsPrimaryContact, &inv.InvitedBy, &inv.CreatedAt, &accepted)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}

		inv.Role = identity.ClientRole(role)
		if accepted.Valid {
			t := accepted.Time
			inv.AcceptedAt = &t
		}

		invitations = append(invitations, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}

	return invitations, nil
}

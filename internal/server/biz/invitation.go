package biz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/store"
)

type InvitationServiceParams struct {
	fx.In

	Invitations *store.InvitationStore
	Companies   *store.CompanyStore
	Clients     profile.ClientStore
	Resolver    *profile.Resolver
}

func NewInvitationService(params InvitationServiceParams) *InvitationService {
	return &InvitationService{
		invitations: params.Invitations,
		companies:   params.Companies,
		clients:     params.Clients,
		resolver:    params.Resolver,
	}
}

// InvitationService manages client invitations, the only path that creates
// client profiles.
type InvitationService struct {
	invitations *store.InvitationStore
	companies   *store.CompanyStore
	clients     profile.ClientStore
	resolver    *profile.Resolver
}

// InviteClient records an invitation binding an email to a company, a client
// role, and the team-management and primary-contact flags. The company is
// created on first use.
func (s *InvitationService) InviteClient(
	ctx context.Context,
	email, companyName string,
	role identity.ClientRole,
	canManageTeam, isPrimaryContact bool,
	invitedBy string,
) (*store.Invitation, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	company, err := s.companies.EnsureCompany(ctx, companyName)
	if err != nil {
		log.Error(ctx, "failed to ensure company", log.Cause(err))

		return nil, ErrInternal
	}

	inv := &store.Invitation{
		ID:               uuid.NewString(),
		Email:            email,
		CompanyID:        company.ID,
		Role:             role,
		CanManageTeam:    canManageTeam,
		IsPrimaryContact: isPrimaryContact,
		InvitedBy:        invitedBy,
		CreatedAt:        time.Now(),
	}

	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDuplicateInvitation
		}

		log.Error(ctx, "failed to create invitation", log.Cause(err))

		return nil, ErrInternal
	}

	log.Info(ctx, "client invited",
		log.String("invitation_id", inv.ID),
		log.String("company_id", company.ID),
		log.String("role", string(role)),
	)

	return inv, nil
}

// AcceptPending turns the pending invitation for an email, if any, into a
// client profile for the newly registered account. No pending invitation is
// a no-op.
func (s *InvitationService) AcceptPending(ctx context.Context, accountID, email, displayName string) error {
	inv, err := s.invitations.GetPendingInvitation(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}

		return err
	}

	company, err := s.companies.GetCompany(ctx, inv.CompanyID)
	if err != nil {
		return err
	}

	now := time.Now()
	clientProfile := &identity.ClientProfile{
		ID:               accountID,
		Email:            email,
		DisplayName:      displayName,
		Role:             inv.Role,
		Company:          *company,
		CanManageTeam:    inv.CanManageTeam,
		IsPrimaryContact: inv.IsPrimaryContact,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.clients.CreateClientProfile(ctx, clientProfile); err != nil {
		if errors.Is(err, profile.ErrConflict) || errors.Is(err, profile.ErrVariantConflict) {
			// A profile already exists; the invitation cannot apply anymore.
			log.Warn(ctx, "invitation superseded by existing profile",
				log.String("account_id", accountID),
				log.String("invitation_id", inv.ID),
			)
		} else {
			return err
		}
	}

	if err := s.invitations.MarkAccepted(ctx, inv.ID); err != nil {
		return err
	}

	s.resolver.Invalidate(ctx, accountID)

	log.Info(ctx, "invitation accepted",
		log.String("invitation_id", inv.ID),
		log.String("account_id", accountID),
	)

	return nil
}

// ListInvitations returns a company's invitations, newest first.
func (s *InvitationService) ListInvitations(ctx context.Context, companyID string) ([]store.Invitation, error) {
	return s.invitations.ListInvitations(ctx, companyID)
}

// ListCompanies returns all companies ordered by name.
func (s *InvitationService) ListCompanies(ctx context.Context) ([]identity.Company, error) {
	return s.companies.ListCompanies(ctx)
}

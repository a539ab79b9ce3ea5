package biz

import (
	"context"
	"errors"

	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/profile"
)

type TeamServiceParams struct {
	fx.In

	Teams    profile.TeamStore
	Resolver *profile.Resolver
}

func NewTeamService(params TeamServiceParams) *TeamService {
	return &TeamService{
		teams:    params.Teams,
		resolver: params.Resolver,
	}
}

// TeamService covers staff administration: role grants on bootstrapped
// accounts.
type TeamService struct {
	teams    profile.TeamStore
	resolver *profile.Resolver
}

// ChangeRole grants a team role. This is how a bootstrapped account at the
// lowest role becomes staff.
func (s *TeamService) ChangeRole(ctx context.Context, accountID string, role identity.TeamRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	if err := s.teams.UpdateTeamRole(ctx, accountID, role); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return err
		}

		log.Error(ctx, "failed to update team role", log.Cause(err))

		return ErrInternal
	}

	s.resolver.Invalidate(ctx, accountID)

	log.Info(ctx, "team role changed",
		log.String("account_id", accountID),
		log.String("role", string(role)),
	)

	return nil
}

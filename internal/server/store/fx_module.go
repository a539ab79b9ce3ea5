package store

import (
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/profile"
)

var Module = fx.Module("store",
	fx.Provide(NewAccountStore),
	fx.Provide(NewCompanyStore),
	fx.Provide(NewInvitationStore),
	fx.Provide(NewTeamProfileStore),
	fx.Provide(NewClientProfileStore),
	fx.Provide(func(s *TeamProfileStore) profile.TeamStore { return s }),
	fx.Provide(func(s *ClientProfileStore) profile.ClientStore { return s }),
)

package biz

import (
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/credential"
)

var Module = fx.Module("biz",
	fx.Provide(NewAccountService),
	fx.Provide(NewInvitationService),
	fx.Provide(NewTeamService),
	fx.Provide(func(s *AccountService) credential.Directory { return s }),
)

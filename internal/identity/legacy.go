package identity

import "fmt"

// LegacyRole is the retired single-enum role model that mixed staff and
// client roles in one profile table.
type LegacyRole string

const (
	LegacyRoleUser       LegacyRole = "user"
	LegacyRoleAdmin      LegacyRole = "admin"
	LegacyRoleModerator  LegacyRole = "moderator"
	LegacyRoleClient     LegacyRole = "client"
	LegacyRoleTeamMember LegacyRole = "team_member"
)

// LegacyRoles lists every value of the retired enum, for migration coverage.
var LegacyRoles = []LegacyRole{
	LegacyRoleUser,
	LegacyRoleAdmin,
	LegacyRoleModerator,
	LegacyRoleClient,
	LegacyRoleTeamMember,
}

// MapLegacyRole maps a legacy role onto the dual taxonomy. Legacy "client"
// rows become Client principals at the lowest client role; everything else
// maps onto the team hierarchy unchanged. Total over LegacyRoles; unknown
// values are rejected so the migration fails loudly instead of guessing.
func MapLegacyRole(r LegacyRole) (Kind, TeamRole, ClientRole, error) {
	switch r {
	case LegacyRoleUser:
		return KindTeam, TeamRoleUser, "", nil
	case LegacyRoleAdmin:
		return KindTeam, TeamRoleAdmin, "", nil
	case LegacyRoleModerator:
		return KindTeam, TeamRoleModerator, "", nil
	case LegacyRoleTeamMember:
		return KindTeam, TeamRoleTeamMember, "", nil
	case LegacyRoleClient:
		return KindClient, "", ClientRoleMember, nil
	default:
		return KindUnknown, "", "", fmt.Errorf("identity: unknown legacy role %q", r)
	}
}

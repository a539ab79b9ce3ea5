package identity

// TeamRole is the role hierarchy for internal staff.
type TeamRole string

const (
	TeamRoleAdmin      TeamRole = "admin"
	TeamRoleModerator  TeamRole = "moderator"
	TeamRoleTeamMember TeamRole = "team_member"
	// TeamRoleUser is the lowest-privilege role, assigned on bootstrap until
	// an administrator grants a staff role.
	TeamRoleUser TeamRole = "user"
)

// Valid reports whether r is a known team role.
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleAdmin, TeamRoleModerator, TeamRoleTeamMember, TeamRoleUser:
		return true
	default:
		return false
	}
}

// Staff reports whether r grants access to team surfaces. TeamRoleUser is an
// account awaiting assignment and is not staff.
func (r TeamRole) Staff() bool {
	switch r {
	case TeamRoleAdmin, TeamRoleModerator, TeamRoleTeamMember:
		return true
	default:
		return false
	}
}

// ClientRole is the role set for external client contacts.
type ClientRole string

const (
	ClientRoleOwner   ClientRole = "owner"
	ClientRoleTech    ClientRole = "tech"
	ClientRoleMedia   ClientRole = "media"
	ClientRoleFinance ClientRole = "finance"
	ClientRoleMember  ClientRole = "member"
)

// Valid reports whether r is a known client role.
func (r ClientRole) Valid() bool {
	switch r {
	case ClientRoleOwner, ClientRoleTech, ClientRoleMedia, ClientRoleFinance, ClientRoleMember:
		return true
	default:
		return false
	}
}

package identity

import (
	"fmt"
	"time"
)

// Kind defines principal variants.
type Kind int

const (
	// KindUnknown unknown principal variant.
	KindUnknown Kind = iota
	// KindTeam internal staff principal.
	KindTeam
	// KindClient external client contact principal.
	KindClient
)

// String returns string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindTeam:
		return "team"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// TeamProfile is the profile row backing a Team principal. One row per
// account id, created at first successful sign-in if absent.
type TeamProfile struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	Role        TeamRole
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Company is the owning company a client contact is scoped to.
type Company struct {
	ID   string
	Name string
}

// ClientProfile is the profile row backing a Client principal, joined to its
// owning company. Created only through the invitation flow.
type ClientProfile struct {
	ID               string
	Email            string
	DisplayName      string
	Role             ClientRole
	Company          Company
	CanManageTeam    bool
	IsPrimaryContact bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Principal is the tagged union over the two profile variants. Exactly one of
// Team/Client is non-nil, matching Kind.
type Principal struct {
	Kind   Kind
	Team   *TeamProfile
	Client *ClientProfile
}

// NewTeamPrincipal wraps a team profile as a principal.
func NewTeamPrincipal(p *TeamProfile) *Principal {
	return &Principal{Kind: KindTeam, Team: p}
}

// NewClientPrincipal wraps a client profile as a principal.
func NewClientPrincipal(p *ClientProfile) *Principal {
	return &Principal{Kind: KindClient, Client: p}
}

// IsTeam checks if it is a team principal.
func (p *Principal) IsTeam() bool {
	return p != nil && p.Kind == KindTeam
}

// IsClient checks if it is a client principal.
func (p *Principal) IsClient() bool {
	return p != nil && p.Kind == KindClient
}

// ID returns the account id shared by both variants, or "" for nil.
func (p *Principal) ID() string {
	if p == nil {
		return ""
	}

	switch p.Kind {
	case KindTeam:
		return p.Team.ID
	case KindClient:
		return p.Client.ID
	default:
		return ""
	}
}

// Email returns the principal's email, or "" for nil.
func (p *Principal) Email() string {
	if p == nil {
		return ""
	}

	switch p.Kind {
	case KindTeam:
		return p.Team.Email
	case KindClient:
		return p.Client.Email
	default:
		return ""
	}
}

// DisplayName returns the principal's display name, or "" for nil.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}

	switch p.Kind {
	case KindTeam:
		return p.Team.DisplayName
	case KindClient:
		return p.Client.DisplayName
	default:
		return ""
	}
}

// String returns string representation of Principal (for audit logs).
func (p *Principal) String() string {
	if p == nil {
		return "absent"
	}

	switch p.Kind {
	case KindTeam:
		return fmt.Sprintf("team:%s:%s", p.Team.ID, p.Team.Role)
	case KindClient:
		return fmt.Sprintf("client:%s:%s", p.Client.ID, p.Client.Role)
	default:
		return "unknown"
	}
}

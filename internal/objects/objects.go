// Package objects holds the JSON shapes shared by the HTTP handlers.
package objects

import (
	"time"

	"github.com/fernhill/clienthub/internal/identity"
)

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error Error `json:"error"`
}

// CompanyInfo is the wire view of a company.
type CompanyInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PrincipalInfo is the wire view of a resolved principal. Exactly one of the
// role fields is meaningful, selected by Kind.
type PrincipalInfo struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`

	// Team variant.
	TeamRole  string `json:"team_role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`

	// Client variant.
	ClientRole       string       `json:"client_role,omitempty"`
	Company          *CompanyInfo `json:"company,omitempty"`
	CanManageTeam    bool         `json:"can_manage_team,omitempty"`
	IsPrimaryContact bool         `json:"is_primary_contact,omitempty"`
}

// ConvertPrincipal maps a principal onto its wire view. Nil in, nil out.
func ConvertPrincipal(p *identity.Principal) *PrincipalInfo {
	if p == nil {
		return nil
	}

	info := &PrincipalInfo{
		Kind:        p.Kind.String(),
		ID:          p.ID(),
		Email:       p.Email(),
		DisplayName: p.DisplayName(),
	}

	switch {
	case p.IsTeam():
		info.TeamRole = string(p.Team.Role)
		info.AvatarURL = p.Team.AvatarURL
	case p.IsClient():
		info.ClientRole = string(p.Client.Role)
		info.Company = &CompanyInfo{ID: p.Client.Company.ID, Name: p.Client.Company.Name}
		info.CanManageTeam = p.Client.CanManageTeam
		info.IsPrimaryContact = p.Client.IsPrimaryContact
	}

	return info
}

// SessionInfo is the wire view of a credential session. The refresh token
// never leaves the server through this shape.
type SessionInfo struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Email       string    `json:"email"`
}

// SnapshotInfo is the wire view of a device's session snapshot.
type SnapshotInfo struct {
	Status    string         `json:"status"`
	Session   *SessionInfo   `json:"session,omitempty"`
	Principal *PrincipalInfo `json:"principal,omitempty"`
}

// InvitationInfo is the wire view of a client invitation.
type InvitationInfo struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	CompanyID        string     `json:"company_id"`
	Role             string     `json:"role"`
	CanManageTeam    bool       `json:"can_manage_team"`
	IsPrimaryContact bool       `json:"is_primary_contact"`
	InvitedBy        string     `json:"invited_by"`
	CreatedAt        time.Time  `json:"created_at"`
	AcceptedAt       *time.Time `json:"accepted_at,omitempty"`
}

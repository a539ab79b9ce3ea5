package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/objects"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/biz"
	"github.com/fernhill/clienthub/internal/server/store"
)

type AdminHandlersParams struct {
	fx.In

	InvitationService *biz.InvitationService
	TeamService       *biz.TeamService
}

func NewAdminHandlers(params AdminHandlersParams) *AdminHandlers {
	return &AdminHandlers{
		invitations: params.InvitationService,
		team:        params.TeamService,
	}
}

// AdminHandlers covers staff administration: client invitations, companies,
// and team role grants. Routes using these are gated to team administrators.
type AdminHandlers struct {
	invitations *biz.InvitationService
	team        *biz.TeamService
}

type InviteClientRequest struct {
	Email            string `json:"email"           binding:"required,email"`
	Company          string `json:"company"         binding:"required"`
	Role             string `json:"role"            binding:"required"`
	CanManageTeam    bool   `json:"can_manage_team"`
	IsPrimaryContact bool   `json:"is_primary_contact"`
}

// InviteClient records a client invitation for an email address.
func (h *AdminHandlers) InviteClient(c *gin.Context) {
	var req InviteClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	invitedBy := identity.MustGetPrincipal(c.Request.Context()).ID()

	inv, err := h.invitations.InviteClient(
		c.Request.Context(),
		req.Email,
		req.Company,
		identity.ClientRole(req.Role),
		req.CanManageTeam,
		req.IsPrimaryContact,
		invitedBy,
	)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrInvalidRole):
			JSONError(c, http.StatusBadRequest, err)
		case errors.Is(err, biz.ErrDuplicateInvitation):
			JSONError(c, http.StatusConflict, err)
		default:
			JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		}

		return
	}

	c.JSON(http.StatusCreated, convertInvitation(*inv))
}

// ListInvitations returns a company's invitations.
func (h *AdminHandlers) ListInvitations(c *gin.Context) {
	companyID := c.Query("company_id")
	if companyID == "" {
		JSONError(c, http.StatusBadRequest, errors.New("company_id query parameter is required"))
		return
	}

	invitations, err := h.invitations.ListInvitations(c.Request.Context(), companyID)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	out := make([]objects.InvitationInfo, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, convertInvitation(inv))
	}

	c.JSON(http.StatusOK, gin.H{"invitations": out})
}

// ListCompanies returns all companies.
func (h *AdminHandlers) ListCompanies(c *gin.Context) {
	companies, err := h.invitations.ListCompanies(c.Request.Context())
	if err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	out := make([]objects.CompanyInfo, 0, len(companies))
	for _, company := range companies {
		out = append(out, objects.CompanyInfo{ID: company.ID, Name: company.Name})
	}

	c.JSON(http.StatusOK, gin.H{"companies": out})
}

type ChangeTeamRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeTeamRole grants a team role to an account.
func (h *AdminHandlers) ChangeTeamRole(c *gin.Context) {
	var req ChangeTeamRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	accountID := c.Param("id")

	err := h.team.ChangeRole(c.Request.Context(), accountID, identity.TeamRole(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrInvalidRole):
			JSONError(c, http.StatusBadRequest, err)
		case errors.Is(err, profile.ErrNotFound):
			JSONError(c, http.StatusNotFound, errors.New("team profile not found"))
		default:
			JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		}

		return
	}

	c.Status(http.StatusNoContent)
}

func convertInvitation(inv store.Invitation) objects.InvitationInfo {
	return objects.InvitationInfo{
		ID:               inv.ID,
		Email:            inv.Email,
		CompanyID:        inv.CompanyID,
		Role:             string(inv.Role),
		CanManageTeam:    inv.CanManageTeam,
		IsPrimaryContact: inv.IsPrimaryContact,
		InvitedBy:        inv.InvitedBy,
		CreatedAt:        inv.CreatedAt,
		AcceptedAt:       inv.AcceptedAt,
	}
}

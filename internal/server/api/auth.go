package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/contexts"
	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/guard"
	"github.com/fernhill/clienthub/internal/metrics"
	"github.com/fernhill/clienthub/internal/objects"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/biz"
	"github.com/fernhill/clienthub/internal/session"
)

type AuthHandlersParams struct {
	fx.In

	Registry       *session.Registry
	Guard          *guard.Guard
	AccountService *biz.AccountService
}

func NewAuthHandlers(params AuthHandlersParams) *AuthHandlers {
	return &AuthHandlers{
		registry: params.Registry,
		guard:    params.Guard,
		accounts: params.AccountService,
	}
}

// AuthHandlers exposes the per-device session operations over HTTP. Every
// handler acts on the session manager of the calling device.
type AuthHandlers struct {
	registry *session.Registry
	guard    *guard.Guard
	accounts *biz.AccountService
}

func (h *AuthHandlers) manager(c *gin.Context) (*session.Manager, bool) {
	deviceID, ok := contexts.GetDeviceID(c.Request.Context())
	if !ok {
		JSONError(c, http.StatusInternalServerError, errors.New("no device id on request"))
		return nil, false
	}

	m, err := h.registry.Manager(c.Request.Context(), deviceID)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("failed to load session"))
		return nil, false
	}

	return m, true
}

type SignInRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignIn authenticates the device's session.
func (h *AuthHandlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, credential.ErrInvalidCredentials) {
			JSONError(c, http.StatusUnauthorized, errors.New("invalid email or password"))
			return
		}

		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))

		return
	}

	c.JSON(http.StatusOK, convertSnapshot(m.Snapshot()))
}

type SignUpRequest struct {
	Email       string `json:"email"        binding:"required,email"`
	Password    string `json:"password"     binding:"required"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// SignUp registers a new account and signs the device in. The response
// carries the fully resolved snapshot; bootstrap runs inline.
func (h *AuthHandlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	attributes := map[string]string{}
	if req.DisplayName != "" {
		attributes[credential.MetaDisplayName] = req.DisplayName
	}

	if req.AvatarURL != "" {
		attributes[credential.MetaAvatarURL] = req.AvatarURL
	}

	err := m.SignUp(c.Request.Context(), req.Email, req.Password, attributes)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrEmailTaken):
			JSONError(c, http.StatusConflict, errors.New("email already registered"))
		case errors.Is(err, biz.ErrInvalidEmail), errors.Is(err, biz.ErrWeakSecret):
			JSONError(c, http.StatusBadRequest, err)
		default:
			JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		}

		return
	}

	c.JSON(http.StatusCreated, convertSnapshot(m.Snapshot()))
}

// SignOut destroys the device's session. Always succeeds from the caller's
// point of view once the local state is cleared.
func (h *AuthHandlers) SignOut(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.SignOut(c.Request.Context()); err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	c.JSON(http.StatusOK, convertSnapshot(m.Snapshot()))
}

// Refresh exchanges the refresh credential for a new session.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.Refresh(c.Request.Context()); err != nil {
		if errors.Is(err, credential.ErrNotSignedIn) || errors.Is(err, credential.ErrSessionExpired) {
			JSONError(c, http.StatusUnauthorized, errors.New("session expired"))
			return
		}

		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))

		return
	}

	c.JSON(http.StatusOK, convertSnapshot(m.Snapshot()))
}

// GetSession returns the device's current snapshot.
func (h *AuthHandlers) GetSession(c *gin.Context) {
	m, ok := h.manager(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, convertSnapshot(m.Snapshot()))
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// UpdateProfile patches the signed-in account's own profile and returns the
// re-read snapshot.
func (h *AuthHandlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	patch := profile.Patch{DisplayName: req.DisplayName, AvatarURL: req.AvatarURL}

	if err := m.UpdateProfile(c.Request.Context(), patch); err != nil {
		switch {
		case errors.Is(err, session.ErrNoProfile):
			JSONError(c, http.StatusConflict, errors.New("no resolved profile to update"))
		case errors.Is(err, profile.ErrNotFound):
			JSONError(c, http.StatusNotFound, errors.New("profile not found"))
		default:
			JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		}

		return
	}

	c.JSON(http.StatusOK, convertSnapshot(m.Snapshot()))
}

type ResetPasswordRequest struct {
	Email      string `json:"email"       binding:"required,email"`
	RedirectTo string `json:"redirect_to"`
}

// ResetPassword starts a password reset flow. The response is identical
// whether or not the email is known.
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	if err := m.ResetPassword(c.Request.Context(), req.Email, req.RedirectTo); err != nil {
		JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	c.Status(http.StatusAccepted)
}

type CompleteResetRequest struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CompleteReset consumes a reset token and installs the new password.
func (h *AuthHandlers) CompleteReset(c *gin.Context) {
	var req CompleteResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, errors.New("invalid request format"))
		return
	}

	err := h.accounts.CompletePasswordReset(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrResetExpired):
			JSONError(c, http.StatusGone, err)
		case errors.Is(err, biz.ErrWeakSecret):
			JSONError(c, http.StatusBadRequest, err)
		default:
			JSONError(c, http.StatusInternalServerError, errors.New("internal server error"))
		}

		return
	}

	c.Status(http.StatusNoContent)
}

type RouteDecisionResponse struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// RouteDecision evaluates the route guard for the device's snapshot and a
// requested path. Frontends call this to decide whether to render, wait, or
// navigate.
func (h *AuthHandlers) RouteDecision(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		JSONError(c, http.StatusBadRequest, errors.New("path query parameter is required"))
		return
	}

	m, ok := h.manager(c)
	if !ok {
		return
	}

	decision := h.guard.Decide(m.Snapshot(), path)
	if decision.Action == guard.ActionRedirect {
		metrics.GuardRedirects.Add(c.Request.Context(), 1)
	}

	c.JSON(http.StatusOK, RouteDecisionResponse{
		Action: decision.Action.String(),
		Target: decision.Target,
	})
}

func convertSnapshot(snap session.Snapshot) objects.SnapshotInfo {
	info := objects.SnapshotInfo{
		Status:    snap.Status.String(),
		Principal: objects.ConvertPrincipal(snap.Principal),
	}

	if snap.Session != nil {
		info.Session = &objects.SessionInfo{
			AccessToken: snap.Session.AccessToken,
			ExpiresAt:   snap.Session.ExpiresAt,
			Email:       snap.Session.Account.Email,
		}
	}

	return info
}

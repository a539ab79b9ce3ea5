package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/clienthub/internal/access"
	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/guard"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/objects"
	"github.com/fernhill/clienthub/internal/pkg/xcache"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/biz"
	"github.com/fernhill/clienthub/internal/server/db"
	"github.com/fernhill/clienthub/internal/server/middleware"
	"github.com/fernhill/clienthub/internal/server/store"
	"github.com/fernhill/clienthub/internal/session"
)

type testApp struct {
	router   *gin.Engine
	teams    *store.TeamProfileStore
	resolver *profile.Resolver
	registry *session.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	gin.SetMode(gin.TestMode)

	sqlDB := db.New(db.Config{DSN: ":memory:"})
	t.Cleanup(func() { _ = sqlDB.Close() })

	teams := store.NewTeamProfileStore(sqlDB)
	clients := store.NewClientProfileStore(sqlDB)

	resolver := profile.NewResolver(profile.ResolverParams{
		Config:      profile.Config{RetryDelay: time.Millisecond},
		CacheConfig: xcache.Config{},
		Teams:       teams,
		Clients:     clients,
	})

	invitations := biz.NewInvitationService(biz.InvitationServiceParams{
		Invitations: store.NewInvitationStore(sqlDB),
		Companies:   store.NewCompanyStore(sqlDB),
		Clients:     clients,
		Resolver:    resolver,
	})

	accounts := biz.NewAccountService(biz.AccountServiceParams{
		Accounts:    store.NewAccountStore(sqlDB),
		Invitations: invitations,
	})

	team := biz.NewTeamService(biz.TeamServiceParams{
		Teams:    teams,
		Resolver: resolver,
	})

	tokens, err := credential.NewTokenIssuer(credential.Config{SecretKey: "test-secret"})
	require.NoError(t, err)

	registry := session.NewRegistry(session.RegistryParams{
		Directory: accounts,
		Tokens:    tokens,
		Resolver:  resolver,
		Teams:     teams,
		Clients:   clients,
	})
	t.Cleanup(registry.Close)

	g := guard.New(access.DefaultTable(), guard.DefaultRoutes())

	auth := NewAuthHandlers(AuthHandlersParams{
		Registry:       registry,
		Guard:          g,
		AccountService: accounts,
	})

	admin := NewAdminHandlers(AdminHandlersParams{
		InvitationService: invitations,
		TeamService:       team,
	})

	router := gin.New()

	authGroup := router.Group("/auth", middleware.WithDevice())
	{
		authGroup.POST("/signin", auth.SignIn)
		authGroup.POST("/signup", auth.SignUp)
		authGroup.POST("/signout", auth.SignOut)
		authGroup.POST("/refresh", auth.Refresh)
		authGroup.POST("/reset-password", auth.ResetPassword)
		authGroup.POST("/reset-password/complete", auth.CompleteReset)
		authGroup.GET("/session", auth.GetSession)
		authGroup.GET("/route-decision", auth.RouteDecision)
		authGroup.PATCH("/profile", auth.UpdateProfile)
	}

	adminGroup := router.Group("/admin",
		middleware.WithBearerAuth(tokens, resolver),
		middleware.RequireTeamAdmin(),
	)
	{
		adminGroup.POST("/invitations", admin.InviteClient)
		adminGroup.GET("/invitations", admin.ListInvitations)
		adminGroup.GET("/companies", admin.ListCompanies)
		adminGroup.PUT("/team/:id/role", admin.ChangeTeamRole)
	}

	return &testApp{router: router, teams: teams, resolver: resolver, registry: registry}
}

// device is an HTTP client bound to one device cookie, mirroring a browser.
type device struct {
	t       *testing.T
	app     *testApp
	cookies []*http.Cookie
	bearer  string
}

func (a *testApp) newDevice(t *testing.T) *device {
	return &device{t: t, app: a}
}

func (d *device) do(method, path string, body any) *httptest.ResponseRecorder {
	d.t.Helper()

	var payload *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(d.t, err)
		payload = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")

	for _, c := range d.cookies {
		req.AddCookie(c)
	}

	if d.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+d.bearer)
	}

	w := httptest.NewRecorder()
	d.app.router.ServeHTTP(w, req)

	if set := w.Result().Cookies(); len(set) > 0 {
		d.cookies = append(d.cookies, set...)
	}

	return w
}

func (d *device) snapshot(w *httptest.ResponseRecorder) objects.SnapshotInfo {
	d.t.Helper()

	var snap objects.SnapshotInfo
	require.NoError(d.t, json.Unmarshal(w.Body.Bytes(), &snap))

	return snap
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	d := app.newDevice(t)

	t.Run("fresh device is signed out", func(t *testing.T) {
		w := d.do(http.MethodGet, "/auth/session", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "signed_out", d.snapshot(w).Status)
	})

	t.Run("signup returns an active snapshot", func(t *testing.T) {
		w := d.do(http.MethodPost, "/auth/signup", gin.H{
			"email":        "staff@fernhill.test",
			"password":     "hunter22hunter22",
			"display_name": "Staffer",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		snap := d.snapshot(w)
		assert.Equal(t, "active", snap.Status)
		require.NotNil(t, snap.Principal)
		assert.Equal(t, "team", snap.Principal.Kind)
		assert.Equal(t, "user", snap.Principal.TeamRole)
		require.NotNil(t, snap.Session)
		assert.NotEmpty(t, snap.Session.AccessToken)
	})

	t.Run("bootstrapped account is denied the dashboard", func(t *testing.T) {
		w := d.do(http.MethodGet, "/auth/route-decision?path=/dashboard", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var decision RouteDecisionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.Equal(t, "redirect", decision.Action)
		assert.Equal(t, "/", decision.Target)
	})

	t.Run("profile patch is visible in the snapshot", func(t *testing.T) {
		w := d.do(http.MethodPatch, "/auth/profile", gin.H{"display_name": "Renamed"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Renamed", d.snapshot(w).Principal.DisplayName)
	})

	t.Run("signout clears the device", func(t *testing.T) {
		w := d.do(http.MethodPost, "/auth/signout", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "signed_out", d.snapshot(w).Status)

		w = d.do(http.MethodGet, "/auth/route-decision?path=/dashboard/reports", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var decision RouteDecisionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.Equal(t, "redirect", decision.Action)
		assert.Equal(t, "/login?return_to=%2Fdashboard%2Freports", decision.Target)
	})

	t.Run("signin with wrong password", func(t *testing.T) {
		w := d.do(http.MethodPost, "/auth/signin", gin.H{
			"email":    "staff@fernhill.test",
			"password": "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("devices are isolated", func(t *testing.T) {
		other := app.newDevice(t)

		w := other.do(http.MethodPost, "/auth/signin", gin.H{
			"email":    "staff@fernhill.test",
			"password": "hunter22hunter22",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = d.do(http.MethodGet, "/auth/session", nil)
		assert.Equal(t, "signed_out", d.snapshot(w).Status)
	})
}

func TestAdminInvitationFlow(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	admin := app.newDevice(t)
	w := admin.do(http.MethodPost, "/auth/signup", gin.H{
		"email":    "admin@fernhill.test",
		"password": "hunter22hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	snap := admin.snapshot(w)
	admin.bearer = snap.Session.AccessToken
	adminID := snap.Principal.ID

	t.Run("bootstrapped account is not an administrator", func(t *testing.T) {
		w := admin.do(http.MethodGet, "/admin/companies", nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	// Promote out of band; granting the first administrator is an operator
	// action, not an API one.
	require.NoError(t, app.teams.UpdateTeamRole(ctx, adminID, identity.TeamRoleAdmin))
	app.resolver.Invalidate(ctx, adminID)

	t.Run("missing bearer token", func(t *testing.T) {
		anon := app.newDevice(t)
		w := anon.do(http.MethodGet, "/admin/companies", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	var companyID string

	t.Run("admin invites a client", func(t *testing.T) {
		w := admin.do(http.MethodPost, "/admin/invitations", gin.H{
			"email":              "contact@acme.test",
			"company":            "Acme",
			"role":               "finance",
			"can_manage_team":    true,
			"is_primary_contact": true,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var inv objects.InvitationInfo
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
		assert.Equal(t, "finance", inv.Role)
		assert.True(t, inv.IsPrimaryContact)
		assert.Equal(t, adminID, inv.InvitedBy)
		companyID = inv.CompanyID

		w = admin.do(http.MethodPost, "/admin/invitations", gin.H{
			"email":   "contact@acme.test",
			"company": "Acme",
			"role":    "member",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invited registration lands on the client variant", func(t *testing.T) {
		client := app.newDevice(t)
		w := client.do(http.MethodPost, "/auth/signup", gin.H{
			"email":        "contact@acme.test",
			"password":     "hunter22hunter22",
			"display_name": "Acme Finance",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		snap := client.snapshot(w)
		assert.Equal(t, "active", snap.Status)
		require.NotNil(t, snap.Principal)
		assert.Equal(t, "client", snap.Principal.Kind)
		assert.Equal(t, "finance", snap.Principal.ClientRole)
		require.NotNil(t, snap.Principal.Company)
		assert.Equal(t, "Acme", snap.Principal.Company.Name)
		assert.True(t, snap.Principal.IsPrimaryContact)

		decision := RouteDecisionResponse{}
		w = client.do(http.MethodGet, "/auth/route-decision?path=/client/portal", nil)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.Equal(t, "render", decision.Action)

		w = client.do(http.MethodGet, "/auth/route-decision?path=/dashboard", nil)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
		assert.Equal(t, "redirect", decision.Action)
		assert.Equal(t, "/client/portal", decision.Target)
	})

	t.Run("invitation shows as accepted", func(t *testing.T) {
		w := admin.do(http.MethodGet, "/admin/invitations?company_id="+companyID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var out struct {
			Invitations []objects.InvitationInfo `json:"invitations"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out.Invitations, 1)
		assert.NotNil(t, out.Invitations[0].AcceptedAt)
	})

	t.Run("admin grants a team role", func(t *testing.T) {
		staffer := app.newDevice(t)
		w := staffer.do(http.MethodPost, "/auth/signup", gin.H{
			"email":    "newhire@fernhill.test",
			"password": "hunter22hunter22",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		stafferID := staffer.snapshot(w).Principal.ID

		w = admin.do(http.MethodPut, "/admin/team/"+stafferID+"/role", gin.H{"role": "moderator"})
		require.Equal(t, http.StatusNoContent, w.Code)

		p, err := app.resolver.Resolve(ctx, stafferID)
		require.NoError(t, err)
		assert.Equal(t, identity.TeamRoleModerator, p.Team.Role)

		w = admin.do(http.MethodPut, "/admin/team/nobody/role", gin.H{"role": "moderator"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-admin staff cannot administer", func(t *testing.T) {
		moderator := app.newDevice(t)
		w := moderator.do(http.MethodPost, "/auth/signin", gin.H{
			"email":    "newhire@fernhill.test",
			"password": "hunter22hunter22",
		})
		require.Equal(t, http.StatusOK, w.Code)

		moderator.bearer = moderator.snapshot(w).Session.AccessToken

		w = moderator.do(http.MethodGet, "/admin/companies", nil)
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

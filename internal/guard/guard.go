// Package guard implements the route guard: a pure decision function mapping
// (session snapshot, requested path) to render, wait, or redirect. It never
// performs I/O; enforcement surfaces feed it a snapshot and act on the
// decision.
package guard

import (
	"net/url"

	"github.com/fernhill/clienthub/internal/access"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/session"
)

// Action is what the caller should do with the requested path.
type Action int

const (
	// ActionLoading means the session state is not known yet; hold the
	// request without redirecting so a slow resolution never bounces a user
	// off a page they are allowed on.
	ActionLoading Action = iota
	// ActionRender means the path may be served as requested.
	ActionRender
	// ActionRedirect means the caller must send the user to Decision.Target.
	ActionRedirect
)

// String returns string representation of Action.
func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one request. Target is set only for
// ActionRedirect.
type Decision struct {
	Action Action
	Target string
}

func render() Decision            { return Decision{Action: ActionRender} }
func loading() Decision           { return Decision{Action: ActionLoading} }
func redirect(to string) Decision { return Decision{Action: ActionRedirect, Target: to} }

// Routes names the well-known paths the guard redirects between. The zero
// value is unusable; use DefaultRoutes.
type Routes struct {
	TeamLogin   string `conf:"team_login" yaml:"team_login" json:"team_login"`
	ClientLogin string `conf:"client_login" yaml:"client_login" json:"client_login"`
	TeamHome    string `conf:"team_home" yaml:"team_home" json:"team_home"`
	ClientHome  string `conf:"client_home" yaml:"client_home" json:"client_home"`
	PublicRoot  string `conf:"public_root" yaml:"public_root" json:"public_root"`
}

// DefaultRoutes returns the application's route layout.
func DefaultRoutes() Routes {
	return Routes{
		TeamLogin:   "/login",
		ClientLogin: "/client/login",
		TeamHome:    "/dashboard",
		ClientHome:  "/client/portal",
		PublicRoot:  "/",
	}
}

// Guard decides what happens to a navigation given the session snapshot. It
// holds only immutable configuration, so one Guard serves all requests.
type Guard struct {
	table  *access.Table
	routes Routes
}

func New(table *access.Table, routes Routes) *Guard {
	return &Guard{table: table, routes: routes}
}

// Decide maps a snapshot and a requested path to a decision.
//
// Ordering matters and is part of the contract:
//  1. loading sessions wait, never redirect;
//  2. unknown paths go to the public root;
//  3. a signed-in principal visiting a login page is forwarded home;
//  4. public paths render for everyone;
//  5. signed-out users go to the login matching the path's audience, with
//     the original path carried in return_to;
//  6. a session without a resolved principal cannot enter protected
//     surfaces and lands on the public root;
//  7. everything else is the capability evaluator's call: denial sends the
//     principal to its own landing page, never the other variant's.
func (g *Guard) Decide(snap session.Snapshot, path string) Decision {
	if snap.Status == session.StatusLoading {
		return loading()
	}

	rule, ok := g.table.Match(path)
	if !ok {
		return redirect(g.routes.PublicRoot)
	}

	if snap.Status == session.StatusActive && g.isLoginPath(path) {
		return redirect(g.landing(snap.Principal))
	}

	if rule.Requirement == access.RequirePublic {
		return render()
	}

	if snap.Status == session.StatusSignedOut {
		return redirect(g.loginFor(rule, path))
	}

	if snap.Status == session.StatusUnresolved {
		return redirect(g.routes.PublicRoot)
	}

	if g.table.CanAccess(snap.Principal, path) {
		return render()
	}

	return redirect(g.landing(snap.Principal))
}

// isLoginPath reports whether path is one of the login entry pages.
func (g *Guard) isLoginPath(path string) bool {
	return path == g.routes.TeamLogin || path == g.routes.ClientLogin
}

// loginFor picks the login page matching the audience of the denied rule, so
// a client hitting a portal deep link is never bounced to the staff login.
func (g *Guard) loginFor(rule access.Rule, returnTo string) string {
	login := g.routes.TeamLogin
	if rule.Requirement == access.RequireClient {
		login = g.routes.ClientLogin
	}

	return login + "?return_to=" + url.QueryEscape(returnTo)
}

// home is the landing page for the principal's own variant.
func (g *Guard) home(p *identity.Principal) string {
	if p.IsClient() {
		return g.routes.ClientHome
	}

	return g.routes.TeamHome
}

// landing is where a denied or forwarded principal ends up. A principal that
// cannot access its own home page, such as a team account still at the
// lowest role, goes to the public root; redirecting it home would loop.
func (g *Guard) landing(p *identity.Principal) string {
	home := g.home(p)
	if g.table.CanAccess(p, home) {
		return home
	}

	return g.routes.PublicRoot
}

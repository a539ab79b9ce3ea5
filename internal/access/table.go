// Package access implements the capability evaluator: a pure decision
// function mapping (principal, resource path) to allow/deny against a
// static, load-time-fixed table of path-prefix rules. Deny-by-default is the
// governing policy; there is no allow fallback anywhere in this package.
package access

import (
	"slices"
	"sort"

	"github.com/fernhill/clienthub/internal/identity"
)

// Requirement defines which principal variant a prefix is scoped to.
type Requirement int

const (
	// RequirePublic allows any principal, including absent ones.
	RequirePublic Requirement = iota
	// RequireTeam allows team principals, optionally restricted by role.
	RequireTeam
	// RequireClient allows client principals, optionally manager-only.
	RequireClient
)

// String returns string representation of Requirement.
func (r Requirement) String() string {
	switch r {
	case RequirePublic:
		return "public"
	case RequireTeam:
		return "team"
	case RequireClient:
		return "client"
	default:
		return "unknown"
	}
}

// Rule grants access to a path prefix for the permitted variant and roles.
type Rule struct {
	// Prefix is matched against resource paths segment-wise; the longest
	// matching prefix wins.
	Prefix string

	Requirement Requirement

	// TeamRoles restricts a team-scoped prefix to the listed roles. Empty
	// means any staff role; TeamRoleUser never qualifies for team surfaces.
	TeamRoles []identity.TeamRole

	// ManagerOnly restricts a client-scoped prefix to contacts that can
	// manage their company team (can_manage_team or the owner role).
	ManagerOnly bool
}

// Table is the static route/resource access table. It is fixed at load time
// and never mutated afterwards, so lookups need no locking.
type Table struct {
	rules []Rule // sorted by descending prefix length
}

// NewTable builds a table from rules. Rules are matched longest-prefix-first.
func NewTable(rules []Rule) *Table {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Table{rules: sorted}
}

// Match returns the longest-prefix rule for path, if any.
func (t *Table) Match(path string) (Rule, bool) {
	for _, r := range t.rules {
		if matchPrefix(r.Prefix, path) {
			return r, true
		}
	}

	return Rule{}, false
}

// matchPrefix matches on path segment boundaries so "/client" does not
// swallow "/clients". The root prefix matches only the root itself; anything
// else would make every path public and defeat deny-by-default.
func matchPrefix(prefix, path string) bool {
	if prefix == "/" {
		return path == "/" || path == ""
	}

	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return false
	}

	rest := path[len(prefix):]

	return rest == "" || rest[0] == '/'
}

// CanAccess reports whether the principal may access the resource path. Pure,
// synchronous, and total: it always returns a boolean and never panics for
// any input, including a nil principal and unknown paths.
func (t *Table) CanAccess(p *identity.Principal, path string) bool {
	rule, ok := t.Match(path)
	if !ok {
		return false
	}

	switch rule.Requirement {
	case RequirePublic:
		return true
	case RequireTeam:
		if !p.IsTeam() {
			return false
		}

		if len(rule.TeamRoles) > 0 {
			return slices.Contains(rule.TeamRoles, p.Team.Role)
		}

		return p.Team.Role.Staff()
	case RequireClient:
		if !p.IsClient() {
			return false
		}

		if rule.ManagerOnly {
			return p.Client.CanManageTeam || p.Client.Role == identity.ClientRoleOwner
		}

		return true
	default:
		return false
	}
}

// DefaultTable is the application's access table: the public surfaces, the
// team dashboard, and the client portal.
func DefaultTable() *Table {
	return NewTable([]Rule{
		{Prefix: "/", Requirement: RequirePublic},
		{Prefix: "/login", Requirement: RequirePublic},
		{Prefix: "/signup", Requirement: RequirePublic},
		{Prefix: "/client/login", Requirement: RequirePublic},
		{Prefix: "/dashboard", Requirement: RequireTeam},
		{Prefix: "/dashboard/users", Requirement: RequireTeam, TeamRoles: []identity.TeamRole{identity.TeamRoleAdmin}},
		{Prefix: "/dashboard/settings", Requirement: RequireTeam, TeamRoles: []identity.TeamRole{identity.TeamRoleAdmin}},
		{Prefix: "/client/portal", Requirement: RequireClient},
		{Prefix: "/client/team", Requirement: RequireClient, ManagerOnly: true},
		{Prefix: "/client/billing", Requirement: RequireClient, ManagerOnly: true},
	})
}

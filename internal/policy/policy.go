// Package policy implements role and base scoped access control. All
// functions are pure predicates over the supplied identity and record; the
// package holds no state and touches no storage.
package policy

import "github.com/adurand/parcops/internal/model"

// Scope describes what part of the fleet a user may see.
type Scope struct {
	// Unrestricted is true for administrators, who see every base.
	Unrestricted bool
	// Base is the single operational base a restricted user is scoped to.
	Base string
}

// ScopeFor resolves a user's visibility scope.
func ScopeFor(u *model.User) Scope {
	if u.Role == model.RoleAdmin {
		return Scope{Unrestricted: true}
	}
	return Scope{Base: u.Base}
}

// CanView reports whether a user may see a concentrator. Restricted users only
// see units currently located at their own base.
func CanView(u *model.User, c *model.Concentrator) bool {
	scope := ScopeFor(u)
	if scope.Unrestricted {
		return true
	}
	return c.Location != "" && c.Location == scope.Base
}

// CanViewBase reports whether a user may see records belonging to a base.
func CanViewBase(u *model.User, base string) bool {
	scope := ScopeFor(u)
	return scope.Unrestricted || base == scope.Base
}

// actionRoles is the action-kind-to-role allow-list. An action missing from
// the map is open to every authenticated role.
var actionRoles = map[model.Action][]model.Role{
	model.ActionReception: {model.RoleAdmin, model.RoleWarehouse},
	model.ActionTransfer:  {model.RoleAdmin, model.RoleWarehouse},
	model.ActionLabTest:   {model.RoleAdmin, model.RoleLab},
}

// CanPerform reports whether a user's role allows an action kind. Unknown
// actions and unknown roles authorize nothing.
func CanPerform(u *model.User, action model.Action) bool {
	if !model.ValidAction(action) || !model.ValidRole(u.Role) {
		return false
	}
	allowed, restricted := actionRoles[action]
	if !restricted {
		return true
	}
	for _, role := range allowed {
		if u.Role == role {
			return true
		}
	}
	return false
}

// Filter returns the base every repository query must be pre-filtered to for
// this user, or "" for unrestricted access. Scoped aggregates never leak
// global totals.
func Filter(u *model.User) string {
	return ScopeFor(u).Base
}

// Package permissions answers role and permission questions about the
// current session user. Every check fails closed: a nil user, an empty id or
// an empty role is never granted anything.
package permissions

import (
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

// Wildcard in a user's permission list grants every permission.
const Wildcard = "*"

// identified reports whether u carries enough to be judged at all.
func identified(u *session.User) bool {
	return u.Valid() && strings.TrimSpace(string(u.Role)) != ""
}

func HasRole(u *session.User, role enums.Role) bool {
	return identified(u) && u.Role == role
}

// HasAnyRole is true when u holds one of roles. An empty list only requires
// an identified user.
func HasAnyRole(u *session.User, roles ...enums.Role) bool {
	if !identified(u) {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func HasPermission(u *session.User, permission string) bool {
	if !identified(u) {
		return false
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission || p == Wildcard {
			return true
		}
	}
	return false
}

func HasAnyPermission(u *session.User, permissions ...string) bool {
	if !identified(u) {
		return false
	}
	if len(permissions) == 0 {
		return true
	}
	for _, p := range permissions {
		if HasPermission(u, p) {
			return true
		}
	}
	return false
}

func HasAllPermissions(u *session.User, permissions ...string) bool {
	if !identified(u) {
		return false
	}
	for _, p := range permissions {
		if !HasPermission(u, p) {
			return false
		}
	}
	return true
}

func IsAdmin(u *session.User) bool {
	return HasRole(u, enums.RoleAdmin)
}

// IsSuperior includes admins.
func IsSuperior(u *session.User) bool {
	return IsAdmin(u) || (identified(u) && u.Role.IsSuperior())
}

// CanEditSister lets admins edit anyone and superiors edit sisters of their
// own community.
func CanEditSister(u *session.User, sisterCommunityID string) bool {
	if IsAdmin(u) {
		return true
	}
	if !IsSuperior(u) {
		return false
	}
	return u.CommunityID != "" && u.CommunityID == sisterCommunityID
}

func CanDeleteSister(u *session.User) bool { return IsAdmin(u) }

func CanViewReports(u *session.User) bool { return IsSuperior(u) }

func CanManageUsers(u *session.User) bool { return IsAdmin(u) }

// Actions is the per-user capability summary shown by the UI.
type Actions struct {
	CanCreate      bool `json:"canCreate"`
	CanEdit        bool `json:"canEdit"`
	CanDelete      bool `json:"canDelete"`
	CanViewReports bool `json:"canViewReports"`
	CanManageUsers bool `json:"canManageUsers"`
	CanExport      bool `json:"canExport"`
	CanImport      bool `json:"canImport"`
}

func AllowedActions(u *session.User) Actions {
	superior := IsSuperior(u)
	admin := IsAdmin(u)
	return Actions{
		CanCreate:      superior,
		CanEdit:        superior,
		CanDelete:      admin,
		CanViewReports: superior,
		CanManageUsers: admin,
		CanExport:      superior,
		CanImport:      admin,
	}
}

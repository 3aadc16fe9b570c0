package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

func user(role enums.Role, perms ...string) *session.User {
	return &session.User{ID: "u-1", Username: "u", Role: role, Permissions: perms, CommunityID: "c-1"}
}

func TestFailClosed(t *testing.T) {
	cases := map[string]*session.User{
		"nil":      nil,
		"no id":    {Role: enums.RoleAdmin, Permissions: []string{Wildcard}},
		"blank id": {ID: "  ", Role: enums.RoleAdmin},
		"no role":  {ID: "u-1", Permissions: []string{"sisters.read"}},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, HasAnyRole(u))
			assert.False(t, HasPermission(u, "sisters.read"))
			assert.False(t, HasAnyPermission(u))
			assert.False(t, HasAllPermissions(u))
			assert.False(t, IsAdmin(u))
			assert.False(t, IsSuperior(u))
			assert.Equal(t, Actions{}, AllowedActions(u))
			assert.False(t, Evaluate(u, Policy{}).Allowed)
		})
	}
}

func TestRoleChecks(t *testing.T) {
	assert.True(t, HasRole(user(enums.RoleSecretary), enums.RoleSecretary))
	assert.False(t, HasRole(user(enums.RoleSecretary), enums.RoleAdmin))
	assert.True(t, HasAnyRole(user(enums.RoleStaff), enums.RoleAdmin, enums.RoleStaff))
	assert.True(t, HasAnyRole(user(enums.RoleStaff)))

	assert.True(t, IsSuperior(user(enums.RoleAdmin)))
	assert.True(t, IsSuperior(user(enums.RoleSuperiorGeneral)))
	assert.True(t, IsSuperior(user(enums.RoleSuperiorCommunity)))
	assert.False(t, IsSuperior(user(enums.RoleManager)))
}

func TestPermissionChecks(t *testing.T) {
	u := user(enums.RoleStaff, "sisters.read", "reports.read")
	assert.True(t, HasPermission(u, "sisters.read"))
	assert.False(t, HasPermission(u, "sisters.write"))
	assert.False(t, HasPermission(u, ""))
	assert.True(t, HasAnyPermission(u, "sisters.write", "reports.read"))
	assert.False(t, HasAllPermissions(u, "sisters.write", "reports.read"))
	assert.True(t, HasAllPermissions(u, "sisters.read", "reports.read"))

	assert.True(t, HasAllPermissions(user(enums.RoleAdmin, Wildcard), "anything", "else"))
}

func TestCanEditSister(t *testing.T) {
	assert.True(t, CanEditSister(user(enums.RoleAdmin), "c-9"))
	assert.True(t, CanEditSister(user(enums.RoleSuperiorCommunity), "c-1"))
	assert.False(t, CanEditSister(user(enums.RoleSuperiorCommunity), "c-9"))
	assert.False(t, CanEditSister(user(enums.RoleSecretary), "c-1"))

	noCommunity := user(enums.RoleSuperiorGeneral)
	noCommunity.CommunityID = ""
	assert.False(t, CanEditSister(noCommunity, ""))
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t, Actions{
		CanCreate: true, CanEdit: true, CanDelete: true, CanViewReports: true,
		CanManageUsers: true, CanExport: true, CanImport: true,
	}, AllowedActions(user(enums.RoleAdmin)))

	assert.Equal(t, Actions{
		CanCreate: true, CanEdit: true, CanViewReports: true, CanExport: true,
	}, AllowedActions(user(enums.RoleSuperiorGeneral)))

	assert.Equal(t, Actions{}, AllowedActions(user(enums.RoleViewer)))
	assert.True(t, CanDeleteSister(user(enums.RoleAdmin)))
	assert.False(t, CanManageUsers(user(enums.RoleSuperiorGeneral)))
	assert.True(t, CanViewReports(user(enums.RoleSuperiorCommunity)))
}

func TestEvaluate(t *testing.T) {
	staff := user(enums.RoleStaff, "sisters.read")

	tests := []struct {
		name   string
		policy Policy
		want   Decision
	}{
		{"open policy", Policy{}, Decision{Allowed: true}},
		{"role ok", Policy{Roles: []enums.Role{enums.RoleStaff, enums.RoleAdmin}}, Decision{Allowed: true}},
		{"role denied forbidden", Policy{Roles: []enums.Role{enums.RoleAdmin}, ShowForbidden: true},
			Decision{Reason: "role", Forbidden: true}},
		{"role denied redirect default", Policy{Roles: []enums.Role{enums.RoleAdmin}},
			Decision{Reason: "role", RedirectTo: DefaultRedirect}},
		{"permission any", Policy{Permissions: []string{"x", "sisters.read"}}, Decision{Allowed: true}},
		{"permission all denied", Policy{Permissions: []string{"x", "sisters.read"}, RequireAll: true, RedirectTo: "/home"},
			Decision{Reason: "permission", RedirectTo: "/home"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(staff, tt.policy))
		})
	}

	assert.Equal(t, Decision{Reason: "unidentified", Forbidden: true}, Evaluate(nil, Policy{ShowForbidden: true}))
}

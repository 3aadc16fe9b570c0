package enums

import (
	"fmt"
	"strings"
)

// Role is the administrative role carried by a backend user.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleSuperiorGeneral   Role = "superior_general"
	RoleSuperiorCommunity Role = "superior_community"
	RoleSecretary         Role = "secretary"
	RoleManager           Role = "manager"
	RoleStaff             Role = "staff"
	RoleViewer            Role = "viewer"
)

var validRoles = []Role{
	RoleAdmin,
	RoleSuperiorGeneral,
	RoleSuperiorCommunity,
	RoleSecretary,
	RoleManager,
	RoleStaff,
	RoleViewer,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsSuperior covers both superior roles.
func (r Role) IsSuperior() bool {
	return r == RoleSuperiorGeneral || r == RoleSuperiorCommunity
}

// ParseRole converts raw input into a Role. Matching ignores case.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRoles {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

package policy

import (
	"errors"
	"fmt"
)

var ErrUnknownRole = errors.New("unknown role")

// Role is the fixed authorization level assigned to an identity.
// Roles are immutable once assigned; changing a role requires a new sign-in.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgAdmin   Role = "org_admin"
	RoleMember     Role = "member"
)

// Roles lists every defined role in a stable order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleOrgAdmin, RoleMember}
}

// ParseRole converts a stored or user-supplied string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSuperAdmin, RoleOrgAdmin, RoleMember:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// DisplayName returns the fixed human label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Administrator"
	case RoleOrgAdmin:
		return "Organization Administrator"
	case RoleMember:
		return "Member"
	}
	panic(fmt.Sprintf("policy: display name for unknown role %q", string(r)))
}

// PermissionSet holds the capability flags derived from a role.
// It is never stored; two identities with the same role always
// carry the same PermissionSet.
type PermissionSet struct {
	CanViewAllTenants bool `json:"can_view_all_tenants"`
	CanSwitchTenants  bool `json:"can_switch_tenants"`
	CanManageUsers    bool `json:"can_manage_users"`
	CanEditSettings   bool `json:"can_edit_settings"`
	CanViewAnalytics  bool `json:"can_view_analytics"`
}

// PermissionsFor maps a role to its permission set. The mapping is total
// over the defined roles; an unrecognized role is a contract violation
// and panics rather than returning a degraded default.
func PermissionsFor(role Role) PermissionSet {
	switch role {
	case RoleSuperAdmin:
		return PermissionSet{
			CanViewAllTenants: true,
			CanSwitchTenants:  true,
			CanManageUsers:    true,
			CanEditSettings:   true,
			CanViewAnalytics:  true,
		}
	case RoleOrgAdmin:
		return PermissionSet{
			CanManageUsers:   true,
			CanEditSettings:  true,
			CanViewAnalytics: true,
		}
	case RoleMember:
		return PermissionSet{
			CanViewAnalytics: true,
		}
	}
	panic(fmt.Sprintf("policy: permissions for unknown role %q", string(role)))
}

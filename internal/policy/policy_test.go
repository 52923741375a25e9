package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/policy"
)

func TestPermissionsFor_SwitchImpliesViewAll(t *testing.T) {
	for _, role := range policy.Roles() {
		perms := policy.PermissionsFor(role)
		if perms.CanSwitchTenants {
			assert.True(t, perms.CanViewAllTenants,
				"role %s can switch tenants but cannot view all tenants", role)
		}
	}
}

func TestPermissionsFor_Deterministic(t *testing.T) {
	for _, role := range policy.Roles() {
		assert.Equal(t, policy.PermissionsFor(role), policy.PermissionsFor(role))
	}
}

func TestPermissionsFor_RoleMatrix(t *testing.T) {
	super := policy.PermissionsFor(policy.RoleSuperAdmin)
	assert.True(t, super.CanViewAllTenants)
	assert.True(t, super.CanSwitchTenants)
	assert.True(t, super.CanManageUsers)
	assert.True(t, super.CanEditSettings)
	assert.True(t, super.CanViewAnalytics)

	orgAdmin := policy.PermissionsFor(policy.RoleOrgAdmin)
	assert.False(t, orgAdmin.CanViewAllTenants)
	assert.False(t, orgAdmin.CanSwitchTenants)
	assert.True(t, orgAdmin.CanManageUsers)
	assert.True(t, orgAdmin.CanEditSettings)
	assert.True(t, orgAdmin.CanViewAnalytics)

	member := policy.PermissionsFor(policy.RoleMember)
	assert.False(t, member.CanViewAllTenants)
	assert.False(t, member.CanSwitchTenants)
	assert.False(t, member.CanManageUsers)
	assert.False(t, member.CanEditSettings)
	assert.True(t, member.CanViewAnalytics)
}

func TestPermissionsFor_UnknownRolePanics(t *testing.T) {
	assert.Panics(t, func() {
		policy.PermissionsFor(policy.Role("intern"))
	})
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    policy.Role
		wantErr bool
	}{
		{"super_admin", policy.RoleSuperAdmin, false},
		{"org_admin", policy.RoleOrgAdmin, false},
		{"member", policy.RoleMember, false},
		{"admin", "", true},
		{"", "", true},
		{"SUPER_ADMIN", "", true},
	}
	for _, tt := range tests {
		got, err := policy.ParseRole(tt.input)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.input)
			assert.ErrorIs(t, err, policy.ErrUnknownRole)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Super Administrator", policy.RoleSuperAdmin.DisplayName())
	assert.Equal(t, "Organization Administrator", policy.RoleOrgAdmin.DisplayName())
	assert.Equal(t, "Member", policy.RoleMember.DisplayName())
	assert.Panics(t, func() { policy.Role("ghost").DisplayName() })
}

// Membership in NavigationFor must coincide exactly with RequiredRoles
// membership, for every role and every catalog entry.
func TestNavigationFor_MatchesRequiredRoles(t *testing.T) {
	for _, role := range policy.Roles() {
		nav := policy.NavigationFor(role)
		navPaths := make(map[string]bool, len(nav))
		for _, e := range nav {
			navPaths[e.RoutePath] = true
		}
		for _, e := range policy.Catalog() {
			required := false
			for _, r := range e.RequiredRoles {
				if r == role {
					required = true
				}
			}
			assert.Equal(t, required, navPaths[e.RoutePath],
				"role %s, route %s", role, e.RoutePath)
		}
	}
}

func TestNavigationFor_PreservesCatalogOrder(t *testing.T) {
	nav := policy.NavigationFor(policy.RoleSuperAdmin)
	full := policy.Catalog()
	require.Len(t, nav, len(full))
	for i := range nav {
		assert.Equal(t, full[i].RoutePath, nav[i].RoutePath)
	}
}

func TestIsRouteAccessible(t *testing.T) {
	tests := []struct {
		role policy.Role
		path string
		want bool
	}{
		{policy.RoleSuperAdmin, "/dashboard/users", true},
		{policy.RoleOrgAdmin, "/dashboard/users", true},
		{policy.RoleMember, "/dashboard/users", false},
		{policy.RoleMember, "/dashboard", true},
		{policy.RoleMember, "/dashboard/analytics", true},
		{policy.RoleMember, "/dashboard/settings", false},
		{policy.RoleOrgAdmin, "/dashboard/tenants", false},
		{policy.RoleSuperAdmin, "/dashboard/tenants", true},
		// Unlisted routes are open by default.
		{policy.RoleMember, "/dashboard/experimental", true},
		{policy.RoleMember, "/totally/unknown", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.IsRouteAccessible(tt.role, tt.path),
			"role %s, path %s", tt.role, tt.path)
	}
}

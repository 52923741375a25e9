package policy

// Icon identifies the glyph rendered next to a navigation entry.
// Icons are enumerated so an unmapped value is caught at the switch,
// not papered over by a runtime string fallback.
type Icon string

const (
	IconHome      Icon = "home"
	IconChart     Icon = "chart"
	IconUsers     Icon = "users"
	IconSettings  Icon = "settings"
	IconBuildings Icon = "buildings"
)

// NavigationEntry is one item of the static navigation catalog.
// RequiredRoles lists every role allowed to reach RoutePath.
type NavigationEntry struct {
	Label         string `json:"label"`
	RoutePath     string `json:"route_path"`
	Icon          Icon   `json:"icon"`
	RequiredRoles []Role `json:"required_roles"`
}

// catalog is the full navigation catalog in display order. It is static
// reference data, not per-user state.
var catalog = []NavigationEntry{
	{
		Label:         "Overview",
		RoutePath:     "/dashboard",
		Icon:          IconHome,
		RequiredRoles: []Role{RoleSuperAdmin, RoleOrgAdmin, RoleMember},
	},
	{
		Label:         "Analytics",
		RoutePath:     "/dashboard/analytics",
		Icon:          IconChart,
		RequiredRoles: []Role{RoleSuperAdmin, RoleOrgAdmin, RoleMember},
	},
	{
		Label:         "Users",
		RoutePath:     "/dashboard/users",
		Icon:          IconUsers,
		RequiredRoles: []Role{RoleSuperAdmin, RoleOrgAdmin},
	},
	{
		Label:         "Settings",
		RoutePath:     "/dashboard/settings",
		Icon:          IconSettings,
		RequiredRoles: []Role{RoleSuperAdmin, RoleOrgAdmin},
	},
	{
		Label:         "Organizations",
		RoutePath:     "/dashboard/tenants",
		Icon:          IconBuildings,
		RequiredRoles: []Role{RoleSuperAdmin},
	},
}

// Catalog returns a copy of the full navigation catalog.
func Catalog() []NavigationEntry {
	out := make([]NavigationEntry, len(catalog))
	copy(out, catalog)
	return out
}

// NavigationFor returns the catalog entries reachable by role,
// preserving catalog order.
func NavigationFor(role Role) []NavigationEntry {
	var entries []NavigationEntry
	for _, e := range catalog {
		if containsRole(e.RequiredRoles, role) {
			entries = append(entries, e)
		}
	}
	return entries
}

// IsRouteAccessible reports whether role may reach routePath. The lookup
// is an exact match against the catalog. Routes not present in the catalog
// are allowed for every role — open-by-default. Any route added to the
// application without a catalog entry is therefore reachable by all roles;
// this mirrors the documented policy and is a known gap, kept as-is.
func IsRouteAccessible(role Role, routePath string) bool {
	for _, e := range catalog {
		if e.RoutePath == routePath {
			return containsRole(e.RequiredRoles, role)
		}
	}
	return true
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

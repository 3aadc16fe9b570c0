// Package views runs the list pages of the admin UI: one list controller per
// page per session, bound to the backend and guarded against stale responses.
package views

import (
	"slices"

	"github.com/thaitruongdao01-afk/saintpaul/internal/permissions"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
)

// Definition describes one list page.
type Definition struct {
	Name       string
	Resource   string
	PageSize   int
	SortFields []string
	FilterKeys []string
	Policy     permissions.Policy
}

func (d Definition) AllowsSort(field string) bool {
	return slices.Contains(d.SortFields, field)
}

func (d Definition) AllowsFilter(key string) bool {
	return slices.Contains(d.FilterKeys, key)
}

var (
	superiors = []enums.Role{enums.RoleAdmin, enums.RoleSuperiorGeneral, enums.RoleSuperiorCommunity}
	adminOnly = permissions.Policy{Roles: []enums.Role{enums.RoleAdmin}, ShowForbidden: true}
)

var catalog = []Definition{
	{
		Name:       "sisters",
		Resource:   "sisters",
		SortFields: []string{"full_name", "religious_name", "birth_date", "entry_date", "created_at"},
		FilterKeys: []string{"status", "community_id", "stage", "age_from", "age_to"},
	},
	{
		Name:       "communities",
		Resource:   "communities",
		SortFields: []string{"name", "code", "established_date", "member_count"},
		FilterKeys: []string{"status", "diocese", "type"},
	},
	{
		Name:       "vocation-journeys",
		Resource:   "vocation-journeys",
		SortFields: []string{"start_date", "end_date", "stage"},
		FilterKeys: []string{"sister_id", "stage", "community_id"},
	},
	{
		Name:       "evaluations",
		Resource:   "evaluations",
		SortFields: []string{"evaluation_date", "score", "sister_name"},
		FilterKeys: []string{"sister_id", "period", "evaluator_id", "type"},
		Policy:     permissions.Policy{Roles: superiors, ShowForbidden: true},
	},
	{
		Name:       "health-records",
		Resource:   "health-records",
		SortFields: []string{"record_date", "sister_name"},
		FilterKeys: []string{"sister_id", "status", "date_from", "date_to"},
	},
	{
		Name:       "reports",
		Resource:   "reports",
		SortFields: []string{"created_at", "title", "period"},
		FilterKeys: []string{"type", "period", "community_id"},
		Policy:     permissions.Policy{Roles: superiors, ShowForbidden: true},
	},
	{
		Name:       "users",
		Resource:   "users",
		PageSize:   20,
		SortFields: []string{"username", "full_name", "role", "created_at", "last_login"},
		FilterKeys: []string{"role", "status"},
		Policy:     adminOnly,
	},
	{
		Name:       "roles",
		Resource:   "roles",
		SortFields: []string{"name", "created_at"},
		Policy:     adminOnly,
	},
	{
		Name:       "permissions",
		Resource:   "permissions",
		SortFields: []string{"name", "module"},
		FilterKeys: []string{"module"},
		Policy:     adminOnly,
	},
	{
		// role to permission assignments
		Name:       "role-permissions",
		Resource:   "role-permissions",
		FilterKeys: []string{"role_id", "permission_id"},
		Policy:     adminOnly,
	},
}

// Catalog lists every known view.
func Catalog() []Definition {
	return slices.Clone(catalog)
}

func Lookup(name string) (Definition, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

package rbac

const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

const (
	PermCatalogView     = "catalog:view"
	PermSessionPlay     = "session:play"
	PermResultsViewOwn  = "results:view-own"
	PermResultsViewAll  = "results:view-all"
	PermPreferencesEdit = "preferences:edit"
	PermContentManage   = "content:manage"
)

// AllPermissions lists every permission the API checks.
var AllPermissions = []string{
	PermCatalogView,
	PermSessionPlay,
	PermResultsViewOwn,
	PermResultsViewAll,
	PermPreferencesEdit,
	PermContentManage,
}

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleLearner: {
		PermCatalogView,
		PermSessionPlay,
		PermResultsViewOwn,
		PermPreferencesEdit,
	},
	RoleAdmin: {
		"*", // everything
	},
}

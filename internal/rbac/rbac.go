package rbac

// Role constants
const (
	RoleOwner     = "owner"     // truck owner managing campaigns and posts
	RolePublisher = "publisher" // external publishing service reporting results
	RoleCollector = "collector" // analytics collector pushing metrics
)

// Permission constants
const (
	PermManageCampaigns = "manage_campaigns"
	PermManagePosts     = "manage_posts"
	PermReportPublish   = "report_publish"
	PermReportAnalytics = "report_analytics"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOwner: {
		PermManageCampaigns, PermManagePosts,
	},
	RolePublisher: {
		PermReportPublish,
	},
	RoleCollector: {
		PermReportAnalytics,
	},
}

// HasPermission checks if a role has a specific permission. An empty role
// is treated as owner, the role tokens carry by default.
func HasPermission(role, permission string) bool {
	if role == "" {
		role = RoleOwner
	}
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsServiceRole reports whether role belongs to a machine caller rather
// than a truck owner. Service callers are not scoped to one owner's data.
func IsServiceRole(role string) bool {
	return role == RolePublisher || role == RoleCollector
}

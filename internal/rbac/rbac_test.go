package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role string
		perm string
		want bool
	}{
		{RoleOwner, PermManageCampaigns, true},
		{RoleOwner, PermManagePosts, true},
		{RoleOwner, PermReportPublish, false},
		{"", PermManagePosts, true},
		{RolePublisher, PermReportPublish, true},
		{RolePublisher, PermManagePosts, false},
		{RoleCollector, PermReportAnalytics, true},
		{RoleCollector, PermReportPublish, false},
		{"admin", PermManageCampaigns, false},
	}

	for _, tt := range tests {
		got := HasPermission(tt.role, tt.perm)
		if got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIsServiceRole(t *testing.T) {
	if IsServiceRole(RoleOwner) {
		t.Error("owner is not a service role")
	}
	if !IsServiceRole(RolePublisher) || !IsServiceRole(RoleCollector) {
		t.Error("publisher and collector are service roles")
	}
}

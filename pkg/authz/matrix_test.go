package authz

import "testing"

func TestMatrixDefaults(t *testing.T) {
	m := NewMatrix()

	cases := []struct {
		name     string
		level    Level
		action   Action
		resource string
		want     bool
	}{
		{"admin_delete_anything", LevelAdmin, ActionDelete, "security/keys", true},
		{"manager_read_all", LevelManager, ActionRead, "admin/settings", true},
		{"manager_write_sales", LevelManager, ActionWrite, "sales/q3", true},
		{"manager_delete_users_denied", LevelManager, ActionDelete, "users/42", false},
		{"user_read_products", LevelUser, ActionRead, "products/1", true},
		{"user_write_account", LevelUser, ActionWrite, "account/profile", true},
		{"user_delete_preferences", LevelUser, ActionDelete, "account/preferences", true},
		{"user_delete_profile_denied", LevelUser, ActionDelete, "account/profile", false},
		{"guest_read_catalog", LevelGuest, ActionRead, "catalog/spring", true},
		{"guest_write_denied", LevelGuest, ActionWrite, "account/profile", false},
		{"guest_delete_denied", LevelGuest, ActionDelete, "products/1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Allowed(tc.level, tc.action, tc.resource); got != tc.want {
				t.Errorf("Allowed(%s, %s, %s) = %v, want %v", tc.level, tc.action, tc.resource, got, tc.want)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	if !matchPattern("sales/*", "sales") {
		t.Error("prefix pattern should match bare prefix")
	}
	if matchPattern("sales/*", "salesforce/1") {
		t.Error("prefix pattern must not match sibling prefixes")
	}
	if !matchPattern("account/preferences", "account/preferences") {
		t.Error("exact pattern should match")
	}
}

func TestCritical(t *testing.T) {
	if !Critical(ActionDelete, "products/1") {
		t.Error("delete is always critical")
	}
	if !Critical(ActionRead, "admin/settings") {
		t.Error("admin resources are critical")
	}
	if !Critical(ActionRead, "security/keys") {
		t.Error("security resources are critical")
	}
	if Critical(ActionRead, "products/1") {
		t.Error("plain read is not critical")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("ADMIN") != LevelAdmin {
		t.Error("expected admin")
	}
	if ParseLevel("unknown") != LevelGuest {
		t.Error("unknown levels default to guest")
	}
}

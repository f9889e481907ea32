package honeypot

import "testing"

func TestMatch(t *testing.T) {
	d := NewDetector(nil)

	cases := []struct {
		path string
		want bool
	}{
		{"/admin/backup", true},
		{"/admin/backup/latest.tar", true},
		{"/wp-admin", true},
		{"/phpmyadmin", true},
		{"/.env", true},
		{"/api/internal/debug", true},
		{"/products/1", false},
		{"/admin/settings", false},
		{"/", false},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := d.Match(tc.path); got != tc.want {
				t.Errorf("Match(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestCustomPrefixRoutes(t *testing.T) {
	d := NewDetector([]string{"/trap/*", "/bait"})
	if !d.Match("/trap/anything/here") {
		t.Error("prefix route should match nested paths")
	}
	if d.Match("/trapdoor") {
		t.Error("prefix route must not match sibling paths")
	}
	if !d.Match("/bait") {
		t.Error("exact route should match")
	}
}

func TestRoutesIncludesPrefixPatterns(t *testing.T) {
	routes := []string{"/trap/*", "/bait"}
	d := NewDetector(routes)
	got := d.Routes()
	if len(got) != 2 || got[0] != "/trap/*" || got[1] != "/bait" {
		t.Fatalf("Routes() = %v, want %v", got, routes)
	}
	got[0] = "/mutated"
	if d.Routes()[0] != "/trap/*" {
		t.Error("Routes() must return a copy")
	}
}

func TestRoutesDefaultSet(t *testing.T) {
	d := NewDetector(nil)
	if len(d.Routes()) != len(DefaultRoutes()) {
		t.Errorf("Routes() reports %d routes, want %d", len(d.Routes()), len(DefaultRoutes()))
	}
}

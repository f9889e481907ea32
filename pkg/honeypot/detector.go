// Package honeypot flags access to decoy routes. Touching one is itself
// proof of malicious intent, so a match short-circuits threat scoring.
package honeypot

import "strings"

// DefaultRoutes are the decoy administrative and debug paths registered at
// startup. The set is immutable after construction.
func DefaultRoutes() []string {
	return []string{
		"/admin/backup",
		"/admin/console",
		"/wp-admin",
		"/wp-login.php",
		"/phpmyadmin",
		"/.env",
		"/.git/config",
		"/config.php",
		"/api/internal/debug",
		"/api/v1/keys/export",
	}
}

// Detector matches request paths against the fixed decoy set.
type Detector struct {
	routes   []string
	exact    map[string]bool
	prefixes []string
}

// NewDetector builds a detector over the given routes; nil means the default
// set. Routes ending in "/*" are prefix patterns, the rest match exactly or
// as a path prefix with a separator.
func NewDetector(routes []string) *Detector {
	if routes == nil {
		routes = DefaultRoutes()
	}
	d := &Detector{
		routes: append([]string(nil), routes...),
		exact:  make(map[string]bool, len(routes)),
	}
	for _, route := range routes {
		if prefix, ok := strings.CutSuffix(route, "/*"); ok {
			d.prefixes = append(d.prefixes, prefix)
			continue
		}
		d.exact[route] = true
		d.prefixes = append(d.prefixes, route)
	}
	return d
}

// Match reports whether path touches a honeypot route.
func (d *Detector) Match(path string) bool {
	if d.exact[path] {
		return true
	}
	for _, prefix := range d.prefixes {
		if strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Routes returns a copy of the registered decoy routes as configured,
// prefix patterns included.
func (d *Detector) Routes() []string {
	return append([]string(nil), d.routes...)
}

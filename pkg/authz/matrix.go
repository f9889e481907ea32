// Package authz implements the static role/action/resource access matrix
// consulted by the zero-trust authorizer, with an optional Rego policy
// override evaluated before the matrix.
package authz

import (
	"strings"
)

// Level is the access level attached to a session.
type Level string

const (
	LevelAdmin   Level = "admin"
	LevelManager Level = "manager"
	LevelUser    Level = "user"
	LevelGuest   Level = "guest"
)

// ParseLevel maps a string onto a known access level, defaulting to guest.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(s)) {
	case LevelAdmin:
		return LevelAdmin
	case LevelManager:
		return LevelManager
	case LevelUser:
		return LevelUser
	default:
		return LevelGuest
	}
}

// Action is an operation a session may attempt on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Matrix maps access level -> action -> allowed resource patterns.
// Patterns are "*" (anything), "prefix/*" (prefix match), or exact.
type Matrix struct {
	rules  map[Level]map[Action][]string
	policy *PolicyEngine // optional Rego override
}

// NewMatrix returns a matrix preloaded with the default rules.
func NewMatrix() *Matrix {
	return &Matrix{rules: defaultRules()}
}

// WithPolicy attaches a Rego policy engine consulted before the static rules.
func (m *Matrix) WithPolicy(pe *PolicyEngine) *Matrix {
	m.policy = pe
	return m
}

func defaultRules() map[Level]map[Action][]string {
	return map[Level]map[Action][]string{
		LevelAdmin: {
			ActionRead:   {"*"},
			ActionWrite:  {"*"},
			ActionDelete: {"*"},
		},
		LevelManager: {
			ActionRead:   {"*"},
			ActionWrite:  {"sales/*", "marketing/*", "users/*"},
			ActionDelete: {"sales/*", "marketing/*"},
		},
		LevelUser: {
			ActionRead:   {"products/*", "catalog/*", "account/*"},
			ActionWrite:  {"account/*"},
			ActionDelete: {"account/preferences"},
		},
		LevelGuest: {
			ActionRead: {"products/*", "catalog/*"},
		},
	}
}

// Allowed reports whether the level may perform action on resource.
// A Rego policy decision, when one is configured and produced, wins over the
// static rules.
func (m *Matrix) Allowed(level Level, action Action, resource string) bool {
	if m.policy != nil {
		if allowed, ok := m.policy.Evaluate(level, action, resource); ok {
			return allowed
		}
	}
	actions, ok := m.rules[level]
	if !ok {
		return false
	}
	for _, pattern := range actions[action] {
		if matchPattern(pattern, resource) {
			return true
		}
	}
	return false
}

// Critical reports whether a resource/action pair requires the stricter
// combined-score threshold.
func Critical(action Action, resource string) bool {
	if action == ActionDelete {
		return true
	}
	return strings.HasPrefix(resource, "admin") || strings.HasPrefix(resource, "security")
}

func matchPattern(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return resource == prefix || strings.HasPrefix(resource, prefix+"/")
	}
	return pattern == resource
}

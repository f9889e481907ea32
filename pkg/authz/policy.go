package authz

import (
	"context"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// PolicyEngine wraps a prepared Rego query for authorization decisions.
// The policy is expected to set data.aegis.authz.allow to a boolean for a
// given {level, action, resource} input; when it produces no result the
// caller falls back to the static matrix.
type PolicyEngine struct {
	prepared rego.PreparedEvalQuery
}

// LoadPolicy compiles the Rego file at path and prepares the allow query.
// An empty path yields a nil engine, which callers treat as "no policy".
func LoadPolicy(path string) (*PolicyEngine, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	pq, err := rego.New(
		rego.Query("data.aegis.authz.allow"),
		rego.Load([]string{path}, nil),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, err
	}
	return &PolicyEngine{prepared: pq}, nil
}

// Evaluate returns the policy decision and true when the policy produced one.
func (pe *PolicyEngine) Evaluate(level Level, action Action, resource string) (bool, bool) {
	if pe == nil {
		return false, false
	}
	input := map[string]any{
		"level":    string(level),
		"action":   string(action),
		"resource": resource,
	}
	rs, err := pe.prepared.Eval(context.Background(), rego.EvalInput(input))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, false
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return allowed, ok
}

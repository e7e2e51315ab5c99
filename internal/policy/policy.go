package policy

import (
	"context"
	"os"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Decision is the outcome of evaluating the dispatch policy for one
// invocation.
type Decision struct {
	Allow   bool
	Reasons []string
}

// Engine evaluates an optional rego module against each invocation before it
// reaches the upstream. With no module configured everything is allowed and
// gating falls back to the catalog alone.
type Engine struct {
	module string
	log    *zap.SugaredLogger
}

// NewEngine loads the rego module at path; an empty path yields a pass-through
// engine.
func NewEngine(path string, log *zap.SugaredLogger) (*Engine, error) {
	e := &Engine{log: log}
	if path == "" {
		return e, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.module = string(b)
	return e, nil
}

// Evaluate runs `data.zsbroker.decide` with the invocation coordinates.
// Expected module output: {"allow": bool, "reasons": [...]}. Evaluation
// errors deny: a broken policy must not silently open write access.
func (e *Engine) Evaluate(ctx context.Context, tenant, service, operation string, write bool) Decision {
	if e.module == "" {
		return Decision{Allow: true}
	}
	r := rego.New(
		rego.Query("data.zsbroker.decide"),
		rego.Module("policy.rego", e.module),
		rego.Input(map[string]any{
			"tenant":    tenant,
			"service":   service,
			"operation": operation,
			"write":     write,
		}),
	)
	rs, err := r.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		e.log.Warnw("policy evaluation failed", "operation", operation, "err", err)
		return Decision{Allow: false, Reasons: []string{"policy_error"}}
	}
	out := rs[0].Expressions[0].Value
	m, ok := out.(map[string]any)
	if !ok {
		return Decision{Allow: false, Reasons: []string{"policy_malformed"}}
	}
	dec := Decision{}
	if allow, ok := m["allow"].(bool); ok {
		dec.Allow = allow
	}
	if reasons, ok := m["reasons"].([]any); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				dec.Reasons = append(dec.Reasons, s)
			}
		}
	}
	return dec
}

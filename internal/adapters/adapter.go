// internal/adapters/adapter.go
package adapters

import (
	"bytes"
	"context"
	"encoding/json"

	jmes "github.com/jmespath/go-jmespath"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/problems"
)

// Operation is one typed entry in a service's operation table. Handlers are
// stateless functions of (authenticated client, parameters) and perform at
// most one upstream call, so retry semantics stay at the dispatcher.
type Operation struct {
	ID      string
	Summary string
	Write   bool
	Handler func(ctx context.Context, c *upstream.Client, params map[string]any) (any, error)
}

// Adapter is the typed operation set for one product surface.
type Adapter interface {
	Service() string
	Operations() map[string]Operation
}

// Registry is the closed set of adapters, selected by service id. No
// reflection: unknown service or operation is a caller error.
type Registry struct {
	byService map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byService: map[string]Adapter{}}
	for _, a := range adapters {
		r.byService[a.Service()] = a
	}
	return r
}

func (r *Registry) Lookup(service, operation string) (Operation, error) {
	a, ok := r.byService[service]
	if !ok {
		return Operation{}, problems.New(problems.KindInvalidParameter, "unknown service "+service)
	}
	op, ok := a.Operations()[operation]
	if !ok {
		return Operation{}, problems.New(problems.KindInvalidParameter, "unknown operation "+operation+" for service "+service)
	}
	return op, nil
}

// Services lists registered service ids.
func (r *Registry) Services() []string {
	out := make([]string, 0, len(r.byService))
	for k := range r.byService {
		out = append(out, k)
	}
	return out
}

// decodeParams maps the untyped invocation parameters onto an operation's
// typed parameter struct. Shape mismatches fail before any network I/O.
func decodeParams(params map[string]any, dst any) error {
	b, err := json.Marshal(params)
	if err != nil {
		return problems.New(problems.KindInvalidParameter, "parameters not serializable")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(dst); err != nil {
		return problems.New(problems.KindInvalidParameter, "parameter shape mismatch: "+err.Error())
	}
	return nil
}

// project extracts a sub-document with a JMESPath expression; upstream list
// endpoints wrap payloads in envelopes the caller does not care about. A
// missing path falls back to the whole document.
func project(doc any, expr string) any {
	if doc == nil {
		return nil
	}
	v, err := jmes.Search(expr, doc)
	if err != nil || v == nil {
		return doc
	}
	return v
}

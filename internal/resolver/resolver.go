// internal/resolver/resolver.go
package resolver

import (
	"context"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/tenants"
)

// Bundle is the short-lived projection of a tenant record handed to the
// broker: the credential coordinates plus the fingerprint of the revision
// they were read at. It is never persisted and never returned to callers
// outside the dispatch path.
type Bundle struct {
	TenantName  string
	Credentials upstream.Credentials
	Fingerprint string
}

// Resolver is a pure read-through to the tenant store. No caching: secrets
// should not linger in memory longer than one resolution.
type Resolver struct {
	store tenants.Store
}

func New(store tenants.Store) *Resolver { return &Resolver{store: store} }

// Resolve looks up a tenant by name. The only error it produces is
// TenantNotFound; reachability of the credentials is the broker's concern.
func (r *Resolver) Resolve(ctx context.Context, tenantName string) (Bundle, error) {
	rec, err := r.store.Get(ctx, tenantName)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		TenantName: rec.TenantName,
		Credentials: upstream.Credentials{
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			VanityDomain: rec.VanityDomain,
			CustomerID:   rec.CustomerID,
		},
		Fingerprint: rec.Fingerprint(),
	}, nil
}

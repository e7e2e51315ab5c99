package tenants

import (
	"context"

	"zsbroker/pkg/problems"
)

type Store interface {
	// Get returns the record for a tenant name (case-insensitive).
	Get(ctx context.Context, tenantName string) (Record, error)
	// Upsert validates and writes a record, bumping its revision.
	Upsert(ctx context.Context, rec Record) (Record, error)
	// Delete removes a tenant.
	Delete(ctx context.Context, tenantName string) error
	// List returns all records.
	List(ctx context.Context) ([]Record, error)
}

// ErrNotFound is the single lookup failure the store produces.
func ErrNotFound(name string) error {
	return problems.New(problems.KindTenantNotFound, "tenant "+name+" not found")
}

// Validate enforces the upsert contract: all five identity/credential fields
// present. Reachability is not checked here; that is the broker's concern.
func Validate(rec Record) error {
	switch {
	case Key(rec.TenantName) == "":
		return problems.New(problems.KindValidation, "tenantName is required")
	case rec.ClientID == "":
		return problems.New(problems.KindValidation, "clientId is required")
	case rec.ClientSecret.Empty():
		return problems.New(problems.KindValidation, "clientSecret is required")
	case rec.VanityDomain == "":
		return problems.New(problems.KindValidation, "vanityDomain is required")
	case rec.CustomerID == "":
		return problems.New(problems.KindValidation, "customerId is required")
	}
	return nil
}

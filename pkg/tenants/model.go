package tenants

import (
	"strings"
	"time"

	"zsbroker/pkg/secrets"
)

// Record is a stored tenant: the name plus the OneAPI credential coordinates
// needed to authenticate against that tenant's Zscaler environment. The
// client secret is a secrets.Secret so it cannot leak through logs or JSON.
type Record struct {
	TenantName   string         `json:"tenant_name"`
	ClientID     string         `json:"client_id"`
	ClientSecret secrets.Secret `json:"client_secret"`
	VanityDomain string         `json:"vanity_domain"` // e.g. acme (acme.zslogin.net)
	CustomerID   string         `json:"customer_id"`
	TestTenant   string         `json:"test_tenant,omitempty"` // optional sandbox twin
	Revision     int64          `json:"revision"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Key normalizes a tenant name for lookup: names are unique case-insensitively.
func Key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Fingerprint derives the credential fingerprint for this record's current
// revision. The broker caches client handles under it.
func (r Record) Fingerprint() string {
	return secrets.Fingerprint(r.ClientID, r.ClientSecret, r.VanityDomain, r.CustomerID, r.Revision)
}

// sameCredentials reports whether two records share all four credential
// coordinates. Used for the advisory duplicate-tenant warning only.
func sameCredentials(a, b Record) bool {
	return a.ClientID == b.ClientID &&
		a.ClientSecret == b.ClientSecret &&
		a.VanityDomain == b.VanityDomain &&
		a.CustomerID == b.CustomerID
}

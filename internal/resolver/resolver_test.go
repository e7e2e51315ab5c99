package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zsbroker/pkg/problems"
	"zsbroker/pkg/secrets"
	"zsbroker/pkg/tenants"
)

func TestResolve(t *testing.T) {
	store := tenants.NewMemoryStore(zap.NewNop().Sugar())
	_, err := store.Upsert(context.Background(), tenants.Record{
		TenantName:   "CorpProd",
		ClientID:     "cid",
		ClientSecret: secrets.Secret("csec"),
		VanityDomain: "acme",
		CustomerID:   "cust-1",
	})
	require.NoError(t, err)

	r := New(store)
	b, err := r.Resolve(context.Background(), "corpprod")
	require.NoError(t, err)
	assert.Equal(t, "CorpProd", b.TenantName)
	assert.Equal(t, "cid", b.Credentials.ClientID)
	assert.Equal(t, "csec", b.Credentials.ClientSecret.Reveal())
	assert.Equal(t, "acme", b.Credentials.VanityDomain)
	assert.Equal(t, "cust-1", b.Credentials.CustomerID)
	assert.NotEmpty(t, b.Fingerprint)
}

func TestResolveUnknownTenant(t *testing.T) {
	r := New(tenants.NewMemoryStore(zap.NewNop().Sugar()))

	_, err := r.Resolve(context.Background(), "Nonexistent")
	require.Error(t, err)
	assert.Equal(t, problems.KindTenantNotFound, problems.KindOf(err))
}

func TestResolveSeesRotatedCredentials(t *testing.T) {
	store := tenants.NewMemoryStore(zap.NewNop().Sugar())
	rec := tenants.Record{
		TenantName:   "CorpProd",
		ClientID:     "cid",
		ClientSecret: secrets.Secret("csec"),
		VanityDomain: "acme",
		CustomerID:   "cust-1",
	}
	_, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)

	r := New(store)
	before, err := r.Resolve(context.Background(), "CorpProd")
	require.NoError(t, err)

	rec.ClientSecret = secrets.Secret("rotated")
	_, err = store.Upsert(context.Background(), rec)
	require.NoError(t, err)

	after, err := r.Resolve(context.Background(), "CorpProd")
	require.NoError(t, err)
	assert.Equal(t, "rotated", after.Credentials.ClientSecret.Reveal(), "no stale cache between store and resolver")
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
}

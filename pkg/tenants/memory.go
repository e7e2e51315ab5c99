// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memStore struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	byKey map[string]Record
}

// NewMemoryStore is the dev fallback when no DATABASE_URL is configured.
func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{log: log, byKey: map[string]Record{}}
}

func (m *memStore) Get(ctx context.Context, tenantName string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.byKey[Key(tenantName)]; ok {
		return r, nil
	}
	return Record{}, ErrNotFound(tenantName)
}

func (m *memStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	if err := Validate(rec); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(rec.TenantName)
	if prev, ok := m.byKey[k]; ok {
		rec.Revision = prev.Revision + 1
	} else {
		rec.Revision = 1
	}
	for ok, other := range m.byKey {
		if ok != k && sameCredentials(other, rec) {
			m.log.Warnw("duplicate tenant credentials", "tenant", rec.TenantName, "existing", other.TenantName)
		}
	}
	rec.UpdatedAt = time.Now().UTC()
	m.byKey[k] = rec
	return rec, nil
}

func (m *memStore) Delete(ctx context.Context, tenantName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(tenantName)
	if _, ok := m.byKey[k]; !ok {
		return ErrNotFound(tenantName)
	}
	delete(m.byKey, k)
	return nil
}

func (m *memStore) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.byKey))
	for _, r := range m.byKey {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return Key(out[i].TenantName) < Key(out[j].TenantName) })
	return out, nil
}

// SeedFromEnv ingests initial tenants (TENANT_SEED_JSON):
// [{"tenant_name":"CorpProd","client_id":"...","client_secret":"...","vanity_domain":"acme","customer_id":"..."}]
func SeedFromEnv(ctx context.Context, s Store, jsonSeed string) error {
	if jsonSeed == "" {
		return nil
	}
	var entries []Record
	if err := json.Unmarshal([]byte(jsonSeed), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := s.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

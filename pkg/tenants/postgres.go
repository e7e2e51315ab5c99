// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"zsbroker/pkg/secrets"
)

// pgStore implements Store backed by PostgreSQL. Credential fields live in a
// single encrypted blob (AES-GCM, versioned 0x01|nonce|ct) so the table never
// holds a plaintext secret. Writes are single statements, so concurrent
// upserts to different tenants never block each other.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
	key    []byte // ENCRYPTION_KEY; empty disables at-rest encryption (dev)
}

func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger, encryptionKey string) Store {
	return &pgStore{dbPool: dbPool, log: log, key: []byte(encryptionKey)}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  tenant_key text PRIMARY KEY,
  tenant_name text NOT NULL,
  credentials_encrypted bytea NOT NULL,
  revision bigint NOT NULL DEFAULT 1,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS usage_events (
  id BIGSERIAL PRIMARY KEY,
  tenant_key text NOT NULL,
  service text,
  operation text,
  status text,
  error_kind text,
  request_id text,
  duration_ms int,
  started_at timestamptz NOT NULL DEFAULT NOW(),
  finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS usage_events_tenant_idx ON usage_events(tenant_key, started_at);
`)
	return err
}

// credBlob is the shape sealed into credentials_encrypted. Plain strings on
// purpose: this struct only ever exists between decrypt and Record.
type credBlob struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	VanityDomain string `json:"vanity_domain"`
	CustomerID   string `json:"customer_id"`
	TestTenant   string `json:"test_tenant,omitempty"`
}

func (p *pgStore) Get(ctx context.Context, tenantName string) (Record, error) {
	row := p.dbPool.QueryRow(ctx,
		`SELECT tenant_name, credentials_encrypted, revision, updated_at FROM tenants WHERE tenant_key=$1`,
		Key(tenantName))
	var rec Record
	var blob []byte
	if err := row.Scan(&rec.TenantName, &blob, &rec.Revision, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound(tenantName)
		}
		return Record{}, err
	}
	var cb credBlob
	if err := secrets.DecryptJSON(blob, p.key, &cb); err != nil {
		p.log.Errorw("tenant credential decrypt", "tenant", rec.TenantName, "err", err)
		return Record{}, ErrNotFound(tenantName)
	}
	rec.ClientID = cb.ClientID
	rec.ClientSecret = secrets.Secret(cb.ClientSecret)
	rec.VanityDomain = cb.VanityDomain
	rec.CustomerID = cb.CustomerID
	rec.TestTenant = cb.TestTenant
	return rec, nil
}

func (p *pgStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	if err := Validate(rec); err != nil {
		return Record{}, err
	}
	blob, err := secrets.EncryptJSON(credBlob{
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret.Reveal(),
		VanityDomain: rec.VanityDomain,
		CustomerID:   rec.CustomerID,
		TestTenant:   rec.TestTenant,
	}, p.key)
	if err != nil {
		return Record{}, err
	}
	p.warnDuplicateCreds(ctx, rec)
	row := p.dbPool.QueryRow(ctx, `
		INSERT INTO tenants(tenant_key, tenant_name, credentials_encrypted, revision, updated_at)
		VALUES ($1,$2,$3,1,NOW())
		ON CONFLICT (tenant_key) DO UPDATE
		  SET tenant_name=EXCLUDED.tenant_name,
		      credentials_encrypted=EXCLUDED.credentials_encrypted,
		      revision=tenants.revision+1,
		      updated_at=NOW()
		RETURNING revision, updated_at`,
		Key(rec.TenantName), rec.TenantName, blob)
	var rev int64
	var updated time.Time
	if err := row.Scan(&rev, &updated); err != nil {
		return Record{}, err
	}
	rec.Revision = rev
	rec.UpdatedAt = updated
	return rec, nil
}

func (p *pgStore) Delete(ctx context.Context, tenantName string) error {
	tag, err := p.dbPool.Exec(ctx, `DELETE FROM tenants WHERE tenant_key=$1`, Key(tenantName))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound(tenantName)
	}
	return nil
}

func (p *pgStore) List(ctx context.Context) ([]Record, error) {
	rows, err := p.dbPool.Query(ctx,
		`SELECT tenant_name, credentials_encrypted, revision, updated_at FROM tenants ORDER BY tenant_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var blob []byte
		if err := rows.Scan(&rec.TenantName, &blob, &rec.Revision, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		var cb credBlob
		if err := secrets.DecryptJSON(blob, p.key, &cb); err != nil {
			p.log.Errorw("tenant credential decrypt", "tenant", rec.TenantName, "err", err)
			continue
		}
		rec.ClientID = cb.ClientID
		rec.ClientSecret = secrets.Secret(cb.ClientSecret)
		rec.VanityDomain = cb.VanityDomain
		rec.CustomerID = cb.CustomerID
		rec.TestTenant = cb.TestTenant
		out = append(out, rec)
	}
	return out, rows.Err()
}

// warnDuplicateCreds is advisory only: two tenants pointing at the same
// coordinates is usually a copy-paste mistake, never a storage error.
func (p *pgStore) warnDuplicateCreds(ctx context.Context, rec Record) {
	rows, err := p.dbPool.Query(ctx,
		`SELECT tenant_name, credentials_encrypted FROM tenants WHERE tenant_key<>$1`, Key(rec.TenantName))
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var blob []byte
		if err := rows.Scan(&name, &blob); err != nil {
			return
		}
		var cb credBlob
		if secrets.DecryptJSON(blob, p.key, &cb) != nil {
			continue
		}
		other := Record{ClientID: cb.ClientID, ClientSecret: secrets.Secret(cb.ClientSecret), VanityDomain: cb.VanityDomain, CustomerID: cb.CustomerID}
		if sameCredentials(other, rec) {
			p.log.Warnw("duplicate tenant credentials", "tenant", rec.TenantName, "existing", name)
			return
		}
	}
}

// internal/broker/broker.go
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"zsbroker/internal/resolver"
	"zsbroker/internal/upstream"
)

var authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zsbroker_broker_auth_attempts_total",
	Help: "Upstream authentication attempts by service.",
}, []string{"service"})

// Factory builds an unauthenticated client for a service and a credential
// set. Injected so tests can count constructions and point at mock upstreams.
type Factory func(serviceID string, creds upstream.Credentials) *upstream.Client

// Key addresses one cached handle. Tenant name is part of the key on purpose:
// two tenants sharing infrastructure coordinates must never share a handle.
type Key struct {
	Tenant      string
	Service     string
	Fingerprint string
}

func (k Key) flight() string { return k.Tenant + "\x00" + k.Service + "\x00" + k.Fingerprint }

type entry struct {
	client   *upstream.Client
	lastUsed time.Time
}

// Broker owns the process-wide client cache. Concurrent acquires for the same
// key collapse into a single authentication; entries idle past idleTTL are
// swept (this is also how handles under stale fingerprints age out — the key
// simply stops being addressable once credentials change).
type Broker struct {
	factory Factory
	log     *zap.SugaredLogger
	idleTTL time.Duration

	mu      sync.Mutex
	entries map[Key]*entry
	group   singleflight.Group

	stopOnce sync.Once
	stop     chan struct{}
}

func New(factory Factory, log *zap.SugaredLogger, idleTTL time.Duration) *Broker {
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	b := &Broker{
		factory: factory,
		log:     log,
		idleTTL: idleTTL,
		entries: map[Key]*entry{},
		stop:    make(chan struct{}),
	}
	go b.sweep()
	return b
}

// Acquire returns the cached handle for (tenant, service, fingerprint) or
// constructs and authenticates one. Construction failures are never cached.
func (b *Broker) Acquire(ctx context.Context, serviceID string, bundle resolver.Bundle) (*upstream.Client, error) {
	k := Key{Tenant: bundle.TenantName, Service: serviceID, Fingerprint: bundle.Fingerprint}

	b.mu.Lock()
	if e, ok := b.entries[k]; ok {
		e.lastUsed = time.Now()
		b.mu.Unlock()
		return e.client, nil
	}
	b.mu.Unlock()

	v, err, _ := b.group.Do(k.flight(), func() (any, error) {
		// Re-check: a previous flight may have populated the entry between
		// our miss and this callback.
		b.mu.Lock()
		if e, ok := b.entries[k]; ok {
			e.lastUsed = time.Now()
			b.mu.Unlock()
			return e.client, nil
		}
		b.mu.Unlock()

		client := b.factory(serviceID, bundle.Credentials)
		authAttempts.WithLabelValues(serviceID).Inc()
		if err := client.Authenticate(ctx); err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.entries[k] = &entry{client: client, lastUsed: time.Now()}
		b.mu.Unlock()
		b.log.Infow("client handle created", "tenant", bundle.TenantName, "service", serviceID)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*upstream.Client), nil
}

// Invalidate drops a handle after an upstream auth failure so the next
// acquire authenticates fresh.
func (b *Broker) Invalidate(tenant, serviceID, fingerprint string) {
	k := Key{Tenant: tenant, Service: serviceID, Fingerprint: fingerprint}
	b.mu.Lock()
	delete(b.entries, k)
	b.mu.Unlock()
}

// Size reports the number of live handles.
func (b *Broker) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Broker) Stop() { b.stopOnce.Do(func() { close(b.stop) }) }

func (b *Broker) sweep() {
	interval := b.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case now := <-t.C:
			b.mu.Lock()
			for k, e := range b.entries {
				if now.Sub(e.lastUsed) > b.idleTTL {
					delete(b.entries, k)
				}
			}
			b.mu.Unlock()
		}
	}
}

// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"zsbroker/internal/adapters"
	"zsbroker/internal/broker"
	"zsbroker/internal/policy"
	"zsbroker/internal/resolver"
	"zsbroker/internal/upstream"
	"zsbroker/pkg/catalog"
	"zsbroker/pkg/problems"
	"zsbroker/pkg/tenants"
)

var (
	invocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zsbroker_invocations_total",
		Help: "Tool invocations by service, operation and outcome.",
	}, []string{"service", "operation", "status"})
	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zsbroker_invocation_duration_seconds",
		Help:    "Tool invocation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})
)

// Invocation is the single inbound unit of work: which tenant, which product
// surface, which operation, and the operation's already-resolved parameters.
type Invocation struct {
	TenantName string         `json:"tenant_name"`
	Service    string         `json:"service"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters"`
}

// Result is everything the orchestrator ever sees. It carries no credential
// field by construction; Data additionally passes the redaction sweep.
type Result struct {
	Status    string `json:"status"` // ok | error
	Data      any    `json:"data,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

func okResult(data any) Result { return Result{Status: "ok", Data: data} }

func errResult(err error) Result {
	kind := problems.KindOf(err)
	msg := "internal error"
	var pe *problems.Error
	if errors.As(err, &pe) {
		msg = pe.Message
	}
	return Result{Status: "error", ErrorKind: string(kind), Message: msg}
}

// Options bound retry and rate-limit behaviour.
type Options struct {
	MaxRetries      int           // retries after the first attempt
	AttemptTimeout  time.Duration // per upstream attempt
	TenantRateLimit int           // invocations per tenant per minute; 0 disables
}

// Dispatcher drives resolve → gate → acquire → execute for each invocation.
// It holds no per-invocation state; the broker's cache is the only shared
// mutable resource it touches.
type Dispatcher struct {
	resolver *resolver.Resolver
	broker   *broker.Broker
	registry *adapters.Registry
	catalog  catalog.Catalog
	policy   *policy.Engine
	rdb      *redis.Client
	pool     *pgxpool.Pool
	log      *zap.SugaredLogger
	opts     Options
}

func New(res *resolver.Resolver, brk *broker.Broker, reg *adapters.Registry, cat catalog.Catalog, pol *policy.Engine, rdb *redis.Client, pool *pgxpool.Pool, log *zap.SugaredLogger, opts Options) *Dispatcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 15 * time.Second
	}
	return &Dispatcher{
		resolver: res, broker: brk, registry: reg, catalog: cat, policy: pol,
		rdb: rdb, pool: pool, log: log, opts: opts,
	}
}

// Invoke runs one tool invocation to completion and always returns a
// structured Result; no adapter or upstream fault escapes as a panic or a
// bare error.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	res := d.invoke(ctx, inv)
	dur := time.Since(start)

	service, operation := labelOr(inv.Service), labelOr(inv.Operation)
	invocations.WithLabelValues(service, operation, res.Status).Inc()
	invocationDuration.WithLabelValues(service, operation).Observe(dur.Seconds())
	d.recordUsage(ctx, inv, res, start, dur)
	if res.Status == "ok" {
		d.log.Infow("invocation ok", "tenant", inv.TenantName, "service", inv.Service, "operation", inv.Operation, "duration_ms", dur.Milliseconds())
	} else {
		d.log.Warnw("invocation failed", "tenant", inv.TenantName, "service", inv.Service, "operation", inv.Operation, "kind", res.ErrorKind, "duration_ms", dur.Milliseconds())
	}
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, inv Invocation) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Errorw("invocation panic", "service", inv.Service, "operation", inv.Operation, "err", rec)
			res = errResult(problems.New(problems.KindInternal, "unexpected fault during dispatch"))
		}
	}()

	if strings.TrimSpace(inv.TenantName) == "" {
		return errResult(problems.New(problems.KindInvalidParameter, "tenant_name is required"))
	}
	op, err := d.registry.Lookup(inv.Service, inv.Operation)
	if err != nil {
		return errResult(err)
	}
	if !d.catalog.ServiceEnabled(inv.Service) {
		return errResult(problems.New(problems.KindInvalidParameter, "service "+inv.Service+" is not enabled"))
	}
	if op.Write && !d.catalog.WriteAllowed(inv.Service, inv.Operation) {
		return errResult(problems.New(problems.KindInvalidParameter, "write operation "+inv.Operation+" is not enabled"))
	}

	bundle, err := d.resolver.Resolve(ctx, inv.TenantName)
	if err != nil {
		return errResult(err)
	}

	if err := d.allowTenant(ctx, bundle.TenantName); err != nil {
		return errResult(err)
	}

	if dec := d.policy.Evaluate(ctx, bundle.TenantName, inv.Service, inv.Operation, op.Write); !dec.Allow {
		msg := "operation denied by policy"
		if len(dec.Reasons) > 0 {
			msg += ": " + strings.Join(dec.Reasons, ", ")
		}
		return errResult(problems.New(problems.KindInvalidParameter, msg))
	}

	// Broker failures are terminal: bad credentials will not self-correct,
	// so the dispatcher never retries authentication.
	client, err := d.broker.Acquire(ctx, inv.Service, bundle)
	if err != nil {
		return errResult(err)
	}

	data, err := d.execute(ctx, op, client, inv, bundle)
	if err != nil {
		return errResult(err)
	}
	return okResult(Redact(data))
}

// execute runs the adapter operation, retrying only transient faults with
// exponential backoff (honoring upstream retry-after hints) up to the bound.
func (d *Dispatcher) execute(ctx context.Context, op adapters.Operation, client *upstream.Client, inv Invocation, bundle resolver.Bundle) (any, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
		data, err := op.Handler(attemptCtx, client, inv.Parameters)
		cancel()
		if err == nil {
			return data, nil
		}
		lastErr = err

		kind := problems.KindOf(err)
		if kind == problems.KindAuthFailed {
			// Session went bad mid-flight; drop the handle so the next
			// invocation authenticates fresh.
			d.broker.Invalidate(bundle.TenantName, inv.Service, bundle.Fingerprint)
		}
		if !problems.Retryable(kind) || attempt == d.opts.MaxRetries {
			return nil, err
		}
		delay := bo.NextBackOff()
		var pe *problems.Error
		if errors.As(err, &pe) && pe.RetryAfter > 0 {
			delay = pe.RetryAfter
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Caller abandoned the invocation; result is discarded anyway.
			return nil, problems.New(problems.KindTimeout, "invocation cancelled")
		}
	}
	return nil, lastErr
}

// allowTenant applies the per-tenant fixed-window rate limit when redis is
// configured. Redis being down fails open: limiting is protective, not
// load-bearing.
func (d *Dispatcher) allowTenant(ctx context.Context, tenant string) error {
	if d.rdb == nil || d.opts.TenantRateLimit <= 0 {
		return nil
	}
	key := "zsbroker:rl:" + tenants.Key(tenant) + ":" + time.Now().UTC().Format("200601021504")
	n, err := d.rdb.Incr(ctx, key).Result()
	if err != nil {
		return nil
	}
	if n == 1 {
		d.rdb.Expire(ctx, key, 65*time.Second)
	}
	if n > int64(d.opts.TenantRateLimit) {
		return problems.RateLimited("tenant invocation rate limit exceeded", time.Minute)
	}
	return nil
}

// recordUsage appends the audit row after the response; best-effort.
func (d *Dispatcher) recordUsage(ctx context.Context, inv Invocation, res Result, start time.Time, dur time.Duration) {
	if d.pool == nil {
		return
	}
	_, _ = d.pool.Exec(ctx, `
		INSERT INTO usage_events(tenant_key, service, operation, status, error_kind, duration_ms, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tenants.Key(inv.TenantName), inv.Service, inv.Operation, res.Status, res.ErrorKind, int(dur.Milliseconds()), start.UTC(), time.Now().UTC())
}

func labelOr(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// cmd/broker-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zsbroker/internal/adapters"
	"zsbroker/internal/adminapi"
	"zsbroker/internal/broker"
	"zsbroker/internal/dispatcher"
	"zsbroker/internal/policy"
	"zsbroker/internal/resolver"
	"zsbroker/internal/toolapi"
	"zsbroker/internal/upstream"
	"zsbroker/pkg/catalog"
	"zsbroker/pkg/config"
	"zsbroker/pkg/db"
	"zsbroker/pkg/logger"
	"zsbroker/pkg/middleware"
	"zsbroker/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store tenants.Store
	if pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = tenants.NewPostgresStore(pool, log, cfg.EncryptionKey)
	} else {
		store = tenants.NewMemoryStore(log)
	}
	if err := tenants.SeedFromEnv(context.Background(), store, os.Getenv("TENANT_SEED_JSON")); err != nil {
		log.Warnw("seed", "err", err)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalw("catalog", "err", err)
	}
	pol, err := policy.NewEngine(cfg.PolicyPath, log)
	if err != nil {
		log.Fatalw("policy", "err", err)
	}

	res := resolver.New(store)
	brk := broker.New(func(serviceID string, creds upstream.Credentials) *upstream.Client {
		return upstream.New(serviceID, creds, upstream.Options{Timeout: cfg.UpstreamTimeout})
	}, log, cfg.BrokerIdleTTL)
	defer brk.Stop()

	reg := adapters.NewRegistry(adapters.NewZIA(), adapters.NewZPA(), adapters.NewZDX(), adapters.NewZCC())
	disp := dispatcher.New(res, brk, reg, cat, pol, rdb, pool, log, dispatcher.Options{
		MaxRetries:      cfg.MaxRetries,
		AttemptTimeout:  cfg.UpstreamTimeout,
		TenantRateLimit: cfg.TenantRateLimit,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(middleware.JWTAuth(cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	admin := adminapi.NewApp(store, adminapi.DefaultProbe(cfg.UpstreamTimeout), log)
	admin.Routes(r)
	toolapi.Register(r, disp)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("broker-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("broker-service stopped")
}

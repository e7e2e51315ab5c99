// internal/adminapi/server.go
package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/problems"
	"zsbroker/pkg/tenants"
)

// Probe checks that a tenant's stored credentials can open an authenticated
// session. Injectable so tests avoid real upstreams.
type Probe func(ctx context.Context, rec tenants.Record) error

// App serves the tenant administration surface: CRUD plus test-connection.
type App struct {
	store tenants.Store
	probe Probe
	log   *zap.SugaredLogger
}

func NewApp(store tenants.Store, probe Probe, log *zap.SugaredLogger) *App {
	return &App{store: store, probe: probe, log: log}
}

func (a *App) Routes(r chi.Router) {
	r.Get("/v1/tenants", a.listTenants)
	r.Get("/v1/tenants/{name}", a.getTenant)
	r.Put("/v1/tenants/{name}", a.putTenant)
	r.Delete("/v1/tenants/{name}", a.deleteTenant)
	r.Post("/v1/tenants/{name}/test-connection", a.testConnection)
}

// DefaultProbe authenticates with a throwaway client and issues the ZIA
// activation-status call. Deliberately not routed through the broker: probing
// unproven credentials must not seed the handle cache.
func DefaultProbe(timeout time.Duration) Probe {
	return func(ctx context.Context, rec tenants.Record) error {
		c := upstream.New("zia", upstream.Credentials{
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			VanityDomain: rec.VanityDomain,
			CustomerID:   rec.CustomerID,
		}, upstream.Options{Timeout: timeout})
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		_, err := c.Do(ctx, http.MethodGet, "/zia/api/v1/status", nil, nil)
		return err
	}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := problems.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case problems.KindTenantNotFound:
		status = http.StatusNotFound
	case problems.KindValidation, problems.KindInvalidParameter:
		status = http.StatusBadRequest
	}
	msg := "internal error"
	var pe *problems.Error
	if errors.As(err, &pe) {
		msg = pe.Message
	}
	writeJSON(w, map[string]any{"error": string(kind), "message": msg}, status)
}

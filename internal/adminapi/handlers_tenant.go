// internal/adminapi/handlers_tenant.go
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zsbroker/pkg/problems"
	"zsbroker/pkg/secrets"
	"zsbroker/pkg/tenants"
)

// tenantView is what the API returns for a tenant. The secret is reported
// only as present/absent; the raw value never leaves the store.
type tenantView struct {
	TenantName   string `json:"tenant_name"`
	ClientID     string `json:"client_id"`
	HasSecret    bool   `json:"has_secret"`
	VanityDomain string `json:"vanity_domain"`
	CustomerID   string `json:"customer_id"`
	TestTenant   string `json:"test_tenant,omitempty"`
	Revision     int64  `json:"revision"`
	UpdatedAt    string `json:"updated_at"`
}

func view(rec tenants.Record) tenantView {
	return tenantView{
		TenantName:   rec.TenantName,
		ClientID:     rec.ClientID,
		HasSecret:    !rec.ClientSecret.Empty(),
		VanityDomain: rec.VanityDomain,
		CustomerID:   rec.CustomerID,
		TestTenant:   rec.TestTenant,
		Revision:     rec.Revision,
		UpdatedAt:    rec.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	recs, err := a.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]tenantView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, view(rec))
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) getTenant(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view(rec), http.StatusOK)
}

type tenantBody struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	VanityDomain string `json:"vanity_domain"`
	CustomerID   string `json:"customer_id"`
	TestTenant   string `json:"test_tenant"`
}

func (a *App) putTenant(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var b tenantBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, problems.New(problems.KindValidation, "bad json"))
		return
	}
	rec := tenants.Record{
		TenantName:   name,
		ClientID:     b.ClientID,
		ClientSecret: secrets.Secret(b.ClientSecret),
		VanityDomain: b.VanityDomain,
		CustomerID:   b.CustomerID,
		TestTenant:   b.TestTenant,
	}
	// Partial update: keep the stored secret when the body omits it.
	if b.ClientSecret == "" {
		if existing, err := a.store.Get(r.Context(), name); err == nil {
			rec.ClientSecret = existing.ClientSecret
		}
	}
	saved, err := a.store.Upsert(r.Context(), rec)
	if err != nil {
		writeError(w, err)
		return
	}
	a.log.Infow("tenant upserted", "tenant", saved.TenantName, "revision", saved.Revision)
	writeJSON(w, view(saved), http.StatusOK)
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.store.Delete(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	a.log.Infow("tenant deleted", "tenant", name)
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

// testConnection reports reachability of a tenant's credentials without
// mutating anything; failure is a report, not a fault.
func (a *App) testConnection(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.probe(r.Context(), rec); err != nil {
		kind := problems.KindOf(err)
		writeJSON(w, map[string]any{"reachable": false, "reason": string(kind)}, http.StatusOK)
		return
	}
	writeJSON(w, map[string]any{"reachable": true}, http.StatusOK)
}

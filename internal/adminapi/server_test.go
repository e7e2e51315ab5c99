package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zsbroker/pkg/problems"
	"zsbroker/pkg/tenants"
)

func newTestApp(t *testing.T, probe Probe) (*App, http.Handler, tenants.Store) {
	t.Helper()
	store := tenants.NewMemoryStore(zap.NewNop().Sugar())
	if probe == nil {
		probe = func(context.Context, tenants.Record) error { return nil }
	}
	app := NewApp(store, probe, zap.NewNop().Sugar())
	r := chi.NewRouter()
	app.Routes(r)
	return app, r, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func tenantPayload() map[string]any {
	return map[string]any{
		"client_id":     "cid",
		"client_secret": "super-secret-value",
		"vanity_domain": "acme",
		"customer_id":   "cust-1",
	}
}

func TestPutAndGetTenant(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	rec, out := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", tenantPayload())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CorpProd", out["tenant_name"])
	assert.Equal(t, true, out["has_secret"])
	assert.Equal(t, float64(1), out["revision"])
	assert.NotContains(t, rec.Body.String(), "super-secret-value")

	rec, out = doJSON(t, h, http.MethodGet, "/v1/tenants/corpprod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cid", out["client_id"])
	assert.NotContains(t, rec.Body.String(), "super-secret-value")
}

func TestPutTenantPartialUpdateKeepsSecret(t *testing.T) {
	_, h, store := newTestApp(t, nil)

	rec, _ := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", tenantPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	update := tenantPayload()
	update["client_id"] = "cid-2"
	delete(update, "client_secret")
	rec, out := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", update)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cid-2", out["client_id"])
	assert.Equal(t, true, out["has_secret"])

	stored, err := store.Get(context.Background(), "CorpProd")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-value", stored.ClientSecret.Reveal())
}

func TestPutTenantValidation(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	payload := tenantPayload()
	delete(payload, "vanity_domain")
	rec, out := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(problems.KindValidation), out["error"])
}

func TestGetUnknownTenant(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	rec, out := doJSON(t, h, http.MethodGet, "/v1/tenants/Nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(problems.KindTenantNotFound), out["error"])
}

func TestListTenants(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	for _, n := range []string{"Alpha", "Beta"} {
		rec, _ := doJSON(t, h, http.MethodPut, "/v1/tenants/"+n, tenantPayload())
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "Alpha", out[0]["tenant_name"])
	assert.NotContains(t, rec.Body.String(), "super-secret-value")
}

func TestDeleteTenant(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	rec, _ := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", tenantPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodDelete, "/v1/tenants/CorpProd", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodGet, "/v1/tenants/CorpProd", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestConnectionReachable(t *testing.T) {
	_, h, _ := newTestApp(t, func(context.Context, tenants.Record) error { return nil })

	rec, _ := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", tenantPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := doJSON(t, h, http.MethodPost, "/v1/tenants/CorpProd/test-connection", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["reachable"])
}

func TestTestConnectionUnreachableIsReportNotFault(t *testing.T) {
	probe := func(context.Context, tenants.Record) error {
		return problems.New(problems.KindAuthFailed, "authentication rejected")
	}
	_, h, _ := newTestApp(t, probe)

	rec, _ := doJSON(t, h, http.MethodPut, "/v1/tenants/CorpProd", tenantPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	rec, out := doJSON(t, h, http.MethodPost, "/v1/tenants/CorpProd/test-connection", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["reachable"])
	assert.Equal(t, string(problems.KindAuthFailed), out["reason"])
}

func TestTestConnectionUnknownTenant(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	rec, _ := doJSON(t, h, http.MethodPost, "/v1/tenants/Nonexistent/test-connection", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

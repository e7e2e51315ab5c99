package toolapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zsbroker/internal/adapters"
	"zsbroker/internal/broker"
	"zsbroker/internal/dispatcher"
	"zsbroker/internal/policy"
	"zsbroker/internal/resolver"
	"zsbroker/internal/upstream"
	"zsbroker/pkg/catalog"
	"zsbroker/pkg/tenants"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := tenants.NewMemoryStore(log)
	brk := broker.New(func(serviceID string, creds upstream.Credentials) *upstream.Client {
		return upstream.New(serviceID, creds, upstream.Options{})
	}, log, time.Minute)
	t.Cleanup(brk.Stop)
	pol, err := policy.NewEngine("", log)
	require.NoError(t, err)
	d := dispatcher.New(resolver.New(store), brk, adapters.NewRegistry(adapters.NewZIA()),
		catalog.Default(), pol, nil, nil, log, dispatcher.Options{})

	r := chi.NewRouter()
	Register(r, d)
	return r
}

func TestInvokeEndpointRejectsBadJSON(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "InvalidParameter")
}

func TestInvokeEndpointCarriesFailuresInBody(t *testing.T) {
	h := newTestHandler(t)

	body := `{"tenant_name":"Nonexistent","service":"zia","operation":"listFirewallRules"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/invoke", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "dispatch failures are results, not transport errors")
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
	assert.Contains(t, rec.Body.String(), "TenantNotFound")
}

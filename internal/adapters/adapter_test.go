package adapters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/problems"
	"zsbroker/pkg/secrets"
)

// apiServer serves the token endpoint plus one recorded API handler, and
// remembers the last API request for path/query assertions.
type apiServer struct {
	srv      *httptest.Server
	hits     atomic.Int64
	lastPath atomic.Value // string
	lastReq  atomic.Value // raw query string
	respond  atomic.Value // http.HandlerFunc
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.respond.Store(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/v1/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.lastPath.Store(r.URL.Path)
		s.lastReq.Store(r.URL.RawQuery)
		s.respond.Load().(http.HandlerFunc)(w, r)
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *apiServer) serve(v any) {
	s.respond.Store(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(v)
	}))
}

func (s *apiServer) client(t *testing.T, service string) *upstream.Client {
	t.Helper()
	return upstream.New(service, upstream.Credentials{
		ClientID:     "cid",
		ClientSecret: secrets.Secret("csec"),
		VanityDomain: "acme",
		CustomerID:   "cust-1",
	}, upstream.Options{TokenURL: s.srv.URL + "/oauth2/v1/token", BaseURL: s.srv.URL})
}

func (s *apiServer) path() string  { v, _ := s.lastPath.Load().(string); return v }
func (s *apiServer) query() string { v, _ := s.lastReq.Load().(string); return v }

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(NewZIA(), NewZPA(), NewZDX(), NewZCC())

	op, err := r.Lookup("zia", "listFirewallRules")
	require.NoError(t, err)
	assert.Equal(t, "listFirewallRules", op.ID)
	assert.False(t, op.Write)

	op, err = r.Lookup("zia", "addAtpMaliciousUrls")
	require.NoError(t, err)
	assert.True(t, op.Write)

	_, err = r.Lookup("nope", "listFirewallRules")
	assert.Equal(t, problems.KindInvalidParameter, problems.KindOf(err))

	_, err = r.Lookup("zia", "nope")
	assert.Equal(t, problems.KindInvalidParameter, problems.KindOf(err))

	assert.ElementsMatch(t, []string{"zia", "zpa", "zdx", "zcc"}, r.Services())
}

func TestWriteFlagsCoverAllMutations(t *testing.T) {
	// Every operation that issues a non-GET call must be flagged Write.
	writes := map[string]bool{
		"addAtpMaliciousUrls": true, "deleteAtpMaliciousUrls": true,
		"addAuthExemptUrls": true, "createIpDestinationGroup": true,
		"deleteIpDestinationGroup": true, "createSegmentGroup": true,
		"deleteSegmentGroup": true, "createBaCertificate": true,
		"deleteBaCertificate": true,
	}
	for _, a := range []Adapter{NewZIA(), NewZPA(), NewZDX(), NewZCC()} {
		for id, op := range a.Operations() {
			assert.Equal(t, writes[id], op.Write, "%s.%s", a.Service(), id)
		}
	}
}

func TestDecodeParams(t *testing.T) {
	var p struct {
		URLs []string `json:"urls"`
	}
	require.NoError(t, decodeParams(map[string]any{"urls": []any{"a", "b"}}, &p))
	assert.Equal(t, []string{"a", "b"}, p.URLs)

	err := decodeParams(map[string]any{"urls": "not-a-list"}, &p)
	assert.Equal(t, problems.KindInvalidParameter, problems.KindOf(err))

	require.NoError(t, decodeParams(nil, &p))
}

func TestProject(t *testing.T) {
	doc := map[string]any{"list": []any{"a"}, "totalPages": float64(1)}
	assert.Equal(t, []any{"a"}, project(doc, "list"))
	// missing path falls back to the whole envelope
	assert.Equal(t, doc, project(doc, "missing"))
	assert.Nil(t, project(nil, "list"))
}

package adapters

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZCCListDevices(t *testing.T) {
	s := newAPIServer(t)
	s.serve([]any{map[string]any{"udid": "d-1", "osType": "3"}})
	c := s.client(t, "zcc")

	op := NewZCC().Operations()["listDevices"]
	out, err := op.Handler(context.Background(), c, map[string]any{
		"username":  "jdoe@acme.com",
		"os_type":   "3",
		"page":      1,
		"page_size": 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "/zcc/papi/public/v1/getDevices", s.path())
	q, err := url.ParseQuery(s.query())
	require.NoError(t, err)
	assert.Equal(t, "jdoe@acme.com", q.Get("username"))
	assert.Equal(t, "3", q.Get("osType"))
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "100", q.Get("pageSize"))
	assert.Len(t, out.([]any), 1)
}

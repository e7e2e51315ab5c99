// internal/adapters/zcc.go
package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"zsbroker/internal/upstream"
)

const zccBase = "/zcc/papi/public/v1"

// ZCC is the client connector / endpoint posture surface.
type ZCC struct{ ops map[string]Operation }

func NewZCC() *ZCC {
	a := &ZCC{}
	a.ops = map[string]Operation{
		"listDevices": {
			ID: "listDevices", Summary: "List enrolled devices from the Client Connector portal",
			Handler: a.listDevices,
		},
	}
	return a
}

func (a *ZCC) Service() string                  { return "zcc" }
func (a *ZCC) Operations() map[string]Operation { return a.ops }

func (a *ZCC) listDevices(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Username string `json:"username"`
		OSType   string `json:"os_type"`
		Page     int    `json:"page"`
		PageSize int    `json:"page_size"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	q := url.Values{}
	if p.Username != "" {
		q.Set("username", p.Username)
	}
	if p.OSType != "" {
		q.Set("osType", p.OSType)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return c.Do(ctx, http.MethodGet, zccBase+"/getDevices", q, nil)
}

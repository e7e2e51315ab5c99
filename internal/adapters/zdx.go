// internal/adapters/zdx.go
package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"zsbroker/internal/upstream"
)

const zdxBase = "/zdx/v1"

// ZDX is the digital experience / insights surface.
type ZDX struct{ ops map[string]Operation }

func NewZDX() *ZDX {
	a := &ZDX{}
	a.ops = map[string]Operation{
		"listApplications": {
			ID: "listApplications", Summary: "List active applications and their experience scores",
			Handler: a.listApplications,
		},
		"listDepartments": {
			ID: "listDepartments", Summary: "List configured departments",
			Handler: a.listDepartments,
		},
		"listLocations": {
			ID: "listLocations", Summary: "List configured locations",
			Handler: a.listLocations,
		},
	}
	return a
}

func (a *ZDX) Service() string                  { return "zdx" }
func (a *ZDX) Operations() map[string]Operation { return a.ops }

type zdxFilterParams struct {
	LocationID   []string `json:"location_id"`
	DepartmentID []string `json:"department_id"`
	GeoID        []string `json:"geo_id"`
	SinceHours   int      `json:"since"`
}

func (p zdxFilterParams) query() url.Values {
	q := url.Values{}
	for _, v := range p.LocationID {
		q.Add("loc", v)
	}
	for _, v := range p.DepartmentID {
		q.Add("dept", v)
	}
	for _, v := range p.GeoID {
		q.Add("geo", v)
	}
	if p.SinceHours > 0 {
		q.Set("since", strconv.Itoa(p.SinceHours))
	}
	return q
}

func (a *ZDX) listApplications(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p zdxFilterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zdxBase+"/apps", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "apps"), nil
}

func (a *ZDX) listDepartments(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p zdxFilterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zdxBase+"/administration/departments", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "departments"), nil
}

func (a *ZDX) listLocations(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p zdxFilterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zdxBase+"/administration/locations", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "locations"), nil
}

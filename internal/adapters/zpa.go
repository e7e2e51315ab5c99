// internal/adapters/zpa.go
package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/problems"
)

// ZPA is the private access / identity surface. All config endpoints are
// customer-scoped, so paths embed the tenant's customer id.
type ZPA struct{ ops map[string]Operation }

func NewZPA() *ZPA {
	a := &ZPA{}
	a.ops = map[string]Operation{
		"listSegmentGroups": {
			ID: "listSegmentGroups", Summary: "List segment groups",
			Handler: a.listSegmentGroups,
		},
		"getSegmentGroup": {
			ID: "getSegmentGroup", Summary: "Get a segment group by id",
			Handler: a.getSegmentGroup,
		},
		"createSegmentGroup": {
			ID: "createSegmentGroup", Summary: "Create a segment group", Write: true,
			Handler: a.createSegmentGroup,
		},
		"deleteSegmentGroup": {
			ID: "deleteSegmentGroup", Summary: "Delete a segment group", Write: true,
			Handler: a.deleteSegmentGroup,
		},
		"listApplicationServers": {
			ID: "listApplicationServers", Summary: "List application servers",
			Handler: a.listApplicationServers,
		},
		"listSegmentsByType": {
			ID: "listSegmentsByType", Summary: "List application segments of one access type",
			Handler: a.listSegmentsByType,
		},
		"listEnrollmentCertificates": {
			ID: "listEnrollmentCertificates", Summary: "List enrollment certificates",
			Handler: a.listEnrollmentCertificates,
		},
		"getEnrollmentCertificate": {
			ID: "getEnrollmentCertificate", Summary: "Get an enrollment certificate by id",
			Handler: a.getEnrollmentCertificate,
		},
		"listIsolationProfiles": {
			ID: "listIsolationProfiles", Summary: "List browser isolation profiles",
			Handler: a.listIsolationProfiles,
		},
		"listBaCertificates": {
			ID: "listBaCertificates", Summary: "List issued browser access certificates",
			Handler: a.listBaCertificates,
		},
		"getBaCertificate": {
			ID: "getBaCertificate", Summary: "Get a browser access certificate by id",
			Handler: a.getBaCertificate,
		},
		"createBaCertificate": {
			ID: "createBaCertificate", Summary: "Upload a browser access certificate", Write: true,
			Handler: a.createBaCertificate,
		},
		"deleteBaCertificate": {
			ID: "deleteBaCertificate", Summary: "Delete a browser access certificate", Write: true,
			Handler: a.deleteBaCertificate,
		},
		"listAppProtectionProfiles": {
			ID: "listAppProtectionProfiles", Summary: "List app protection (inspection) profiles",
			Handler: a.listAppProtectionProfiles,
		},
		"listAccessPolicyRules": {
			ID: "listAccessPolicyRules", Summary: "List access policy rules",
			Handler: a.policyRules("ACCESS_POLICY"),
		},
		"listIsolationPolicyRules": {
			ID: "listIsolationPolicyRules", Summary: "List isolation policy rules",
			Handler: a.policyRules("ISOLATION_POLICY"),
		},
		"listTrustedNetworks": {
			ID: "listTrustedNetworks", Summary: "List trusted networks",
			Handler: a.listTrustedNetworks,
		},
		"listSamlAttributes": {
			ID: "listSamlAttributes", Summary: "List SAML attributes",
			Handler: a.listSamlAttributes,
		},
		"listScimAttributes": {
			ID: "listScimAttributes", Summary: "List SCIM attributes for an IdP",
			Handler: a.listScimAttributes,
		},
	}
	return a
}

func (a *ZPA) Service() string                  { return "zpa" }
func (a *ZPA) Operations() map[string]Operation { return a.ops }

func zpaBase(c *upstream.Client) string {
	return "/zpa/mgmtconfig/v1/admin/customers/" + url.PathEscape(c.CustomerID())
}

type pageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p pageParams) query() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pagesize", strconv.Itoa(p.PageSize))
	}
	return q
}

func (a *ZPA) listSegmentGroups(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/segmentGroup", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

type zpaIDParams struct {
	ID string `json:"id"`
}

func (p zpaIDParams) validate() error {
	if p.ID == "" {
		return problems.New(problems.KindInvalidParameter, "id is required")
	}
	return nil
}

func (a *ZPA) getSegmentGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p zpaIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, zpaBase(c)+"/segmentGroup/"+url.PathEscape(p.ID), nil, nil)
}

func (a *ZPA) createSegmentGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Enabled     *bool  `json:"enabled"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, problems.New(problems.KindInvalidParameter, "name is required")
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	body := map[string]any{"name": p.Name, "description": p.Description, "enabled": enabled}
	return c.Do(ctx, http.MethodPost, zpaBase(c)+"/segmentGroup", nil, body)
}

func (a *ZPA) deleteSegmentGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p zpaIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodDelete, zpaBase(c)+"/segmentGroup/"+url.PathEscape(p.ID), nil, nil)
}

func (a *ZPA) listApplicationServers(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/server", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) listSegmentsByType(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		ApplicationType string `json:"application_type"`
		ExpandAll       bool   `json:"expand_all"`
		Search          string `json:"search"`
		pageParams
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	switch p.ApplicationType {
	case "BROWSER_ACCESS", "INSPECT", "SECURE_REMOTE_ACCESS":
	default:
		return nil, problems.New(problems.KindInvalidParameter,
			"application_type must be one of BROWSER_ACCESS, INSPECT, SECURE_REMOTE_ACCESS")
	}
	q := p.query()
	q.Set("applicationType", p.ApplicationType)
	if p.ExpandAll {
		q.Set("expandAll", "true")
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/application/getAppsByType", q, nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) listEnrollmentCertificates(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Search string `json:"search"`
		pageParams
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	q := p.query()
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/enrollmentCert", q, nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) getEnrollmentCertificate(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p certIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, zpaBase(c)+"/enrollmentCert/"+url.PathEscape(p.CertificateID), nil, nil)
}

func (a *ZPA) listIsolationProfiles(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/isolation/profiles", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

type certIDParams struct {
	CertificateID string `json:"certificate_id"`
}

func (p certIDParams) validate() error {
	if p.CertificateID == "" {
		return problems.New(problems.KindInvalidParameter, "certificate_id is required")
	}
	return nil
}

func (a *ZPA) listBaCertificates(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/clientlessCertificate/issued", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) getBaCertificate(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p certIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, zpaBase(c)+"/certificate/"+url.PathEscape(p.CertificateID), nil, nil)
}

func (a *ZPA) createBaCertificate(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Name     string `json:"name"`
		CertBlob string `json:"cert_blob"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" || p.CertBlob == "" {
		return nil, problems.New(problems.KindInvalidParameter, "name and cert_blob are required")
	}
	body := map[string]any{"name": p.Name, "certBlob": p.CertBlob}
	return c.Do(ctx, http.MethodPost, zpaBase(c)+"/certificate", nil, body)
}

func (a *ZPA) deleteBaCertificate(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p certIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodDelete, zpaBase(c)+"/certificate/"+url.PathEscape(p.CertificateID), nil, nil)
}

func (a *ZPA) listAppProtectionProfiles(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Search string `json:"search"`
		pageParams
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	q := p.query()
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/inspectionProfile", q, nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) policyRules(policyType string) func(context.Context, *upstream.Client, map[string]any) (any, error) {
	return func(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
		var p pageParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/policySet/rules/policyType/"+policyType, p.query(), nil)
		if err != nil {
			return nil, err
		}
		return project(doc, "list"), nil
	}
}

func (a *ZPA) listTrustedNetworks(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/network", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) listSamlAttributes(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p pageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/samlAttribute", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

func (a *ZPA) listScimAttributes(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		IdpID string `json:"idp_id"`
		pageParams
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.IdpID == "" {
		return nil, problems.New(problems.KindInvalidParameter, "idp_id is required")
	}
	doc, err := c.Do(ctx, http.MethodGet, zpaBase(c)+"/idp/"+url.PathEscape(p.IdpID)+"/scimattribute", p.query(), nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "list"), nil
}

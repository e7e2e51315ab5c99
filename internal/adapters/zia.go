// internal/adapters/zia.go
package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"zsbroker/internal/upstream"
	"zsbroker/pkg/problems"
)

const ziaBase = "/zia/api/v1"

// ZIA is the secure web gateway / firewall policy surface.
type ZIA struct{ ops map[string]Operation }

func NewZIA() *ZIA {
	a := &ZIA{}
	a.ops = map[string]Operation{
		"listFirewallRules": {
			ID: "listFirewallRules", Summary: "List firewall filtering rules",
			Handler: a.listFirewallRules,
		},
		"listAtpMaliciousUrls": {
			ID: "listAtpMaliciousUrls", Summary: "Retrieve the ATP malicious URL denylist",
			Handler: a.listAtpMaliciousUrls,
		},
		"addAtpMaliciousUrls": {
			ID: "addAtpMaliciousUrls", Summary: "Add URLs to the ATP malicious URL denylist", Write: true,
			Handler: a.addAtpMaliciousUrls,
		},
		"deleteAtpMaliciousUrls": {
			ID: "deleteAtpMaliciousUrls", Summary: "Remove URLs from the ATP malicious URL denylist", Write: true,
			Handler: a.deleteAtpMaliciousUrls,
		},
		"listAuthExemptUrls": {
			ID: "listAuthExemptUrls", Summary: "List cookie-authentication exempt URLs",
			Handler: a.listAuthExemptUrls,
		},
		"addAuthExemptUrls": {
			ID: "addAuthExemptUrls", Summary: "Add cookie-authentication exempt URLs", Write: true,
			Handler: a.addAuthExemptUrls,
		},
		"listGreRanges": {
			ID: "listGreRanges", Summary: "List available GRE internal IP ranges",
			Handler: a.listGreRanges,
		},
		"listIpDestinationGroups": {
			ID: "listIpDestinationGroups", Summary: "List IP destination groups",
			Handler: a.listIPDestinationGroups,
		},
		"getIpDestinationGroup": {
			ID: "getIpDestinationGroup", Summary: "Get an IP destination group by id",
			Handler: a.getIPDestinationGroup,
		},
		"createIpDestinationGroup": {
			ID: "createIpDestinationGroup", Summary: "Create an IP destination group", Write: true,
			Handler: a.createIPDestinationGroup,
		},
		"deleteIpDestinationGroup": {
			ID: "deleteIpDestinationGroup", Summary: "Delete an IP destination group", Write: true,
			Handler: a.deleteIPDestinationGroup,
		},
		"getSandboxQuota": {
			ID: "getSandboxQuota", Summary: "Get sandbox report API quota",
			Handler: a.getSandboxQuota,
		},
		"activationStatus": {
			ID: "activationStatus", Summary: "Get configuration activation status",
			Handler: a.activationStatus,
		},
	}
	return a
}

func (a *ZIA) Service() string                  { return "zia" }
func (a *ZIA) Operations() map[string]Operation { return a.ops }

func (a *ZIA) listFirewallRules(ctx context.Context, c *upstream.Client, _ map[string]any) (any, error) {
	return c.Do(ctx, http.MethodGet, ziaBase+"/firewallFilteringRules", nil, nil)
}

func (a *ZIA) listAtpMaliciousUrls(ctx context.Context, c *upstream.Client, _ map[string]any) (any, error) {
	doc, err := c.Do(ctx, http.MethodGet, ziaBase+"/security/advanced", nil, nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "blacklistUrls"), nil
}

type urlListParams struct {
	URLs []string `json:"urls"`
}

func (p urlListParams) validate() error {
	if len(p.URLs) == 0 {
		return problems.New(problems.KindInvalidParameter, "urls must be a non-empty list")
	}
	return nil
}

func (a *ZIA) addAtpMaliciousUrls(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	return a.mutateAtpList(ctx, c, params, "ADD_TO_LIST")
}

func (a *ZIA) deleteAtpMaliciousUrls(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	return a.mutateAtpList(ctx, c, params, "REMOVE_FROM_LIST")
}

func (a *ZIA) mutateAtpList(ctx context.Context, c *upstream.Client, params map[string]any, action string) (any, error) {
	var p urlListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	q := url.Values{"action": {action}}
	doc, err := c.Do(ctx, http.MethodPost, ziaBase+"/security/advanced/blacklistUrls", q, map[string]any{"blacklistUrls": p.URLs})
	if err != nil {
		return nil, err
	}
	return project(doc, "blacklistUrls"), nil
}

func (a *ZIA) listAuthExemptUrls(ctx context.Context, c *upstream.Client, _ map[string]any) (any, error) {
	doc, err := c.Do(ctx, http.MethodGet, ziaBase+"/authSettings/exemptedUrls", nil, nil)
	if err != nil {
		return nil, err
	}
	return project(doc, "urls"), nil
}

func (a *ZIA) addAuthExemptUrls(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p urlListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	q := url.Values{"action": {"ADD_TO_LIST"}}
	doc, err := c.Do(ctx, http.MethodPost, ziaBase+"/authSettings/exemptedUrls", q, map[string]any{"urls": p.URLs})
	if err != nil {
		return nil, err
	}
	return project(doc, "urls"), nil
}

func (a *ZIA) listGreRanges(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Limit int `json:"limit"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return c.Do(ctx, http.MethodGet, ziaBase+"/greTunnels/availableInternalIpRanges", q, nil)
}

func (a *ZIA) listIPDestinationGroups(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		ExcludeType string `json:"exclude_type"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	q := url.Values{}
	if p.ExcludeType != "" {
		q.Set("excludeType", p.ExcludeType)
	}
	return c.Do(ctx, http.MethodGet, ziaBase+"/ipDestinationGroups", q, nil)
}

type groupIDParams struct {
	GroupID string `json:"group_id"`
}

func (p groupIDParams) validate() error {
	if p.GroupID == "" {
		return problems.New(problems.KindInvalidParameter, "group_id is required")
	}
	return nil
}

func (a *ZIA) getIPDestinationGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p groupIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, ziaBase+"/ipDestinationGroups/"+url.PathEscape(p.GroupID), nil, nil)
}

func (a *ZIA) createIPDestinationGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p struct {
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		Addresses   []string `json:"addresses"`
		Description string   `json:"description"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" || p.Type == "" {
		return nil, problems.New(problems.KindInvalidParameter, "name and type are required")
	}
	body := map[string]any{"name": p.Name, "type": p.Type, "addresses": p.Addresses, "description": p.Description}
	return c.Do(ctx, http.MethodPost, ziaBase+"/ipDestinationGroups", nil, body)
}

func (a *ZIA) deleteIPDestinationGroup(ctx context.Context, c *upstream.Client, params map[string]any) (any, error) {
	var p groupIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodDelete, ziaBase+"/ipDestinationGroups/"+url.PathEscape(p.GroupID), nil, nil)
}

func (a *ZIA) getSandboxQuota(ctx context.Context, c *upstream.Client, _ map[string]any) (any, error) {
	return c.Do(ctx, http.MethodGet, ziaBase+"/sandbox/report/quota", nil, nil)
}

func (a *ZIA) activationStatus(ctx context.Context, c *upstream.Client, _ map[string]any) (any, error) {
	return c.Do(ctx, http.MethodGet, ziaBase+"/status", nil, nil)
}

// internal/upstream/client.go
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"zsbroker/pkg/problems"
	"zsbroker/pkg/secrets"
)

// Credentials are the four coordinates needed to authenticate one tenant's
// environment. The secret stays a secrets.Secret until the token request body
// is built.
type Credentials struct {
	ClientID     string
	ClientSecret secrets.Secret
	VanityDomain string
	CustomerID   string
}

// Options tune a client. Zero values give production endpoints; tests point
// TokenURL/BaseURL at an httptest server.
type Options struct {
	TokenURL   string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client is an authenticated, service-scoped handle onto the Zscaler OneAPI.
// One client serves one (tenant, service) pair and is shared across
// concurrent invocations; the token refresh is the only internal lock.
type Client struct {
	service  string
	creds    Credentials
	tokenURL string
	baseURL  string
	http     *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(service string, creds Credentials, opts Options) *Client {
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://%s.zslogin.net/oauth2/v1/token", creds.VanityDomain)
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.zsapi.net"
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		service:  service,
		creds:    creds,
		tokenURL: tokenURL,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
	}
}

func (c *Client) Service() string    { return c.service }
func (c *Client) CustomerID() string { return c.creds.CustomerID }

// Authenticate performs the OAuth2 client-credentials exchange. The broker
// calls this once per handle construction; Do refreshes lazily on expiry.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshTokenLocked(ctx)
}

func (c *Client) refreshTokenLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret.Reveal())
	form.Set("audience", "https://api.zscaler.com")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return problems.New(problems.KindInternal, "token request build failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(err, "identity service")
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest:
		// The token endpoint reports bad client credentials as 400/401. The
		// message names no credential field; callers know the tenant.
		return problems.New(problems.KindAuthFailed, "identity service rejected the credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return problems.RateLimited("identity service rate limit", retryAfter(resp))
	default:
		return problems.New(problems.KindUnreachable, "identity service returned "+resp.Status)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return problems.New(problems.KindAuthFailed, "identity service returned no token")
	}
	c.token = tok.AccessToken
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	// refresh a minute early
	c.tokenExp = time.Now().Add(ttl - time.Minute)
	return nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Now().After(c.tokenExp) {
		if err := c.refreshTokenLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// Do performs one authenticated call and decodes the JSON response. Every
// adapter operation funnels through here exactly once, so retry semantics
// stay uniform at the dispatcher.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	tok, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	full := c.baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, problems.New(problems.KindInvalidParameter, "request body not serializable")
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, rdr)
	if err != nil {
		return nil, problems.New(problems.KindInternal, "request build failed")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportErr(err, c.service)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		// Connection dropped mid-body; transient like any other transport fault.
		return nil, transportErr(err, c.service)
	}
	if err := classify(resp, c.service); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, problems.New(problems.KindUpstream, c.service+" returned a non-JSON payload")
	}
	return out, nil
}

func classify(resp *http.Response, service string) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return problems.New(problems.KindAuthFailed, service+" rejected the session")
	case resp.StatusCode == http.StatusTooManyRequests:
		return problems.RateLimited(service+" rate limit exceeded", retryAfter(resp))
	case resp.StatusCode >= 500:
		// 5xx is transient from the caller's perspective; let the dispatcher retry.
		return problems.New(problems.KindUnreachable, service+" returned "+resp.Status)
	default:
		return problems.New(problems.KindUpstream, service+" returned "+resp.Status)
	}
}

func transportErr(err error, target string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return problems.New(problems.KindTimeout, target+" timed out")
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return problems.New(problems.KindTimeout, target+" timed out")
	}
	return problems.New(problems.KindUnreachable, target+" unreachable")
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

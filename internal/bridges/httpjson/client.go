package httpjson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hearth-home/hearth-core/internal/coordinator"
	"github.com/hearth-home/hearth-core/internal/integration"
)

// Type is the integration type name this adapter registers under.
const Type = "httpjson"

// defaultTimeout is a transport-level safety net. The coordinator's
// per-fetch timeout is the operative bound; this only catches requests
// issued without a deadline on the context.
const defaultTimeout = 30 * time.Second

// Client polls a JSON-over-HTTP vendor endpoint. One client exists per
// config entry and is reused across fetches so the underlying connection
// pool stays warm.
type Client struct {
	endpoint string
	token    string
	headers  map[string]string
	http     *http.Client
}

// Register adds the httpjson adapter to the given registry.
func Register(r *integration.Registry) error {
	return r.Register(Type, New)
}

// New builds a Client from config entry options.
//
// Recognised options:
//
//	url     (string, required) — full URL of the JSON status endpoint
//	token   (string, optional) — bearer token sent as Authorization header
//	headers (map, optional)    — extra request headers
func New(opts map[string]interface{}) (integration.DeviceClient, error) {
	rawURL, _ := opts["url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: url is required", integration.ErrInvalidOptions)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: url must be http or https", integration.ErrInvalidOptions)
	}

	c := &Client{
		endpoint: rawURL,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	if token, ok := opts["token"].(string); ok {
		c.token = token
	}
	if raw, ok := opts["headers"].(map[string]interface{}); ok {
		c.headers = make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				c.headers[k] = s
			}
		}
	}
	return c, nil
}

// Fetch performs one GET against the configured endpoint and decodes the
// JSON body into a fresh snapshot map.
//
// Failures are classified for the coordinator: transport errors and
// timeouts are recoverable, 401/403 stop polling until re-authentication,
// and 404/410 mean the configured resource is gone for good.
func (c *Client) Fetch(ctx context.Context) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, coordinator.ConfigErrorf("building request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection refused, DNS failure, context deadline: all
		// transient from the coordinator's point of view.
		return nil, coordinator.Recoverablef("request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var snapshot map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, coordinator.Recoverablef("decoding response: %v", err)
	}
	return snapshot, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// classifyStatus maps an HTTP status code onto the coordinator's failure
// taxonomy. Returns nil for success codes.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return coordinator.AuthFailedf("upstream rejected credentials: HTTP %d", code)
	case code == http.StatusNotFound || code == http.StatusGone:
		return coordinator.ConfigErrorf("configured resource no longer exists: HTTP %d", code)
	default:
		// 429, 5xx and anything unexpected: keep trying.
		return coordinator.Recoverablef("unexpected status: HTTP %d", code)
	}
}

package externalutm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"utmcore/internal/apierr"
)

// HTTPClient is the default Client implementation: plain net/http against a
// configured base endpoint, authenticated with a bearer API key. There is
// no domain-specific UTM SDK in the example pack to build on, so this stays
// a small hand-rolled adapter behind the Client interface rather than a
// generated client.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient bound to baseURL, with requestTimeout
// applied per call.
func NewHTTPClient(baseURL, apiKey string, requestTimeout time.Duration) *HTTPClient {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *HTTPClient) PushTelemetry(ctx context.Context, reports []RemoteIDReport) error {
	return c.postJSON(ctx, "/remote-id/reports", reports, nil)
}

func (c *HTTPClient) PullGeofences(ctx context.Context) ([]ExternalGeofence, error) {
	var out []ExternalGeofence
	if err := c.getJSON(ctx, "/geofences", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) PullFlightDeclarations(ctx context.Context) ([]ExternalFlightDeclaration, error) {
	var out []ExternalFlightDeclaration
	if err := c.getJSON(ctx, "/flight-declarations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return apierr.Wrap(apierr.Internal, "encode external utm request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build external utm request", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "build external utm request", err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return apierr.Wrap(apierr.ExternalUnavailable, "external utm request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apierr.New(apierr.ExternalUnavailable, fmt.Sprintf("external utm returned status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.ExternalUnavailable, "decode external utm response", err)
	}
	return nil
}

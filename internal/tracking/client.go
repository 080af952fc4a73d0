package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the public hub-ez tracking endpoint.
const DefaultEndpoint = "https://www.hub-ez.com/Tracking/GetTracking"

// Client fetches snapshots for one tracking number.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient builds the request URL once. The http client carries no timeout of
// its own; requests are bound only by the caller's context.
func NewClient(endpoint, trackingNumber string, hc *http.Client) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, fmt.Errorf("%w: empty tracking number", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, endpoint)
	}
	q := u.Query()
	q.Set("trackingNumber", trackingNumber)
	u.RawQuery = q.Encode()

	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{url: u.String(), httpClient: hc}, nil
}

// URL returns the fully built request URL.
func (c *Client) URL() string { return c.url }

// Fetch issues one POST with an empty body and decodes the response.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrInvalidURL, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}

	return Decode(body)
}

// Decode parses a raw endpoint response and checks its shape.
func Decode(body []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := snap.Shipment(); err != nil {
		return nil, err
	}
	return &snap, nil
}

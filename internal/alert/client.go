// Package alert polls the external air raid alert service and feeds the
// engine's alarm flag.
package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultBaseURL is the alerts.in.ua IoT endpoint; the region UID and
	// ".json" are appended.
	DefaultBaseURL = "https://api.alerts.in.ua/v1/iot/active_air_raid_alerts"
	DefaultTimeout = 6 * time.Second
)

var (
	// ErrTransport covers timeouts, connection errors and non-2xx responses.
	ErrTransport = errors.New("alert transport failure")
	// ErrNoCredentials means the token or region UID is not configured.
	ErrNoCredentials = errors.New("alert credentials not configured")
)

// Credentials authenticate one region's status request.
type Credentials struct {
	Token string
	UID   string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.UID) != ""
}

// HTTPClient is the part of *http.Client the status client needs.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client with the poll timeout and a traced transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&http.Transport{
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 1,
			IdleConnTimeout:     30 * time.Second,
		}),
	}
}

// Client fetches the raw status code for a region.
type Client struct {
	baseURL string
	http    HTTPClient
}

// NewClient creates a status client. Empty baseURL means DefaultBaseURL and
// a nil client means NewHTTPClient(DefaultTimeout).
func NewClient(baseURL string, c HTTPClient) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if c == nil {
		c = NewHTTPClient(DefaultTimeout)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// URL returns the status URL for a region UID.
func (c *Client) URL(uid string) string {
	return c.baseURL + "/" + url.PathEscape(strings.TrimSpace(uid)) + ".json"
}

// Status performs one request and returns the cleaned status code.
func (c *Client) Status(ctx context.Context, creds Credentials) (string, error) {
	if !creds.Valid() {
		return "", ErrNoCredentials
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(creds.UID), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %v: %w", err, ErrTransport)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(creds.Token))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, ErrTransport)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("alert poll: close body: %v", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read body: %v: %w", err, ErrTransport)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d: %w", resp.StatusCode, ErrTransport)
	}
	return ParseStatus(body), nil
}

// ParseStatus strips whitespace and double quotes from a response body.
func ParseStatus(body []byte) string {
	return strings.Trim(strings.TrimSpace(string(body)), `"`)
}

// IsActive maps a status code to the alarm flag: "A" (active) and "P"
// (partial) raise the alarm, anything else clears it.
func IsActive(status string) bool {
	return status == "A" || status == "P"
}

// Package idp is the HTTP client for the external identity provider. The
// provider is opaque: the gateway submits end-user credentials and receives
// a subject identity, nothing more. Calls carry a hard 10-second timeout and
// are never retried; failures propagate to the current request.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

var (
	// ErrAuthenticationFailed covers bad credentials. Callers must not
	// surface it differently from ErrUnavailable to clients.
	ErrAuthenticationFailed = errors.New("idp: authentication failed")
	ErrUnavailable          = errors.New("idp: provider unavailable")
)

// Identity is the authenticated subject returned by the provider.
type Identity struct {
	SubjectID string `json:"id"`
	Email     string `json:"email"`
}

// Client talks to the identity provider's password-grant endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// ClientOption configures Client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("idp: base URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticate submits email/password to the provider and returns the
// authenticated subject.
func (c *Client) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/token?grant_type=password", bytes.NewReader(payload))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrAuthenticationFailed
	default:
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		User Identity `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if strings.TrimSpace(body.User.SubjectID) == "" {
		return Identity{}, fmt.Errorf("%w: empty subject", ErrUnavailable)
	}
	return body.User, nil
}

// Ping probes provider reachability and reports the round-trip latency.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return elapsed, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return elapsed, nil
}

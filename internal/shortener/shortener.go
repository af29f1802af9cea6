// Package shortener wraps a YOURLS-compatible URL shortening service. The
// client is stateless and makes exactly one call per Shorten; retry policy
// belongs to the caller.
package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 15 * time.Second

// Error reports a failed shortening call.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("shorten error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("shorten error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Client calls a YOURLS "action=shorturl" endpoint.
type Client struct {
	Endpoint  string // e.g. "https://sho.rt/yourls-api.php"
	Signature string // optional API signature token
	HTTP      *http.Client
}

// New returns a client for the given endpoint.
func New(endpoint, signature string) *Client {
	return &Client{
		Endpoint:  endpoint,
		Signature: signature,
		HTTP:      &http.Client{Timeout: DefaultTimeout},
	}
}

type shortURLResponse struct {
	ShortURL string `json:"shorturl"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Shorten asks the service for a short equivalent of longURL.
func (c *Client) Shorten(ctx context.Context, longURL string) (string, error) {
	query := url.Values{}
	query.Set("action", "shorturl")
	query.Set("format", "json")
	query.Set("url", longURL)
	if c.Signature != "" {
		query.Set("signature", c.Signature)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create shorten request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &Error{URL: longURL, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: longURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	var parsed shortURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &Error{URL: longURL, Message: "cannot decode response", Cause: err}
	}
	if parsed.ShortURL == "" {
		msg := parsed.Message
		if msg == "" {
			msg = "service returned no short URL"
		}
		return "", &Error{URL: longURL, Message: msg}
	}
	return parsed.ShortURL, nil
}

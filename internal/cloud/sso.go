package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LoginSSO authenticates against a form-based single-sign-on front. It
// fetches the login page (following redirects to the identity provider),
// harvests the hidden form fields, posts the credentials, and leaves the
// resulting session cookies in the client's jar. API calls afterwards still
// carry basic auth, which the server accepts once the session exists.
func (c *Client) LoginSSO(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create login page request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: "sso login", Path: "/", Message: "cannot reach login page", Cause: err}
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return &RequestError{Op: "sso login", Path: "/", Message: "cannot read login page", Cause: err}
	}

	// The URL after redirects is the identity provider's form target.
	ssoURL := resp.Request.URL.String()

	form, err := hiddenFormFields(strings.NewReader(string(body)))
	if err != nil {
		return &RequestError{Op: "sso login", Path: ssoURL, Message: "cannot parse login form", Cause: err}
	}
	form.Set("username", c.username)
	form.Set("password", c.password)

	postReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ssoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	postReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	postResp, err := c.httpClient.Do(postReq)
	if err != nil {
		return &RequestError{Op: "sso login", Path: ssoURL, Message: "login submission failed", Cause: err}
	}
	defer func() { _ = postResp.Body.Close() }()

	if postResp.StatusCode >= http.StatusBadRequest {
		return &RequestError{Op: "sso login", Path: ssoURL, StatusCode: postResp.StatusCode, Message: "login rejected"}
	}

	// The session cookies are in the jar now; verify they are usable.
	return c.Probe(ctx)
}

// hiddenFormFields collects every hidden input of the login form, typically
// CSRF tokens the identity provider requires back.
func hiddenFormFields(page io.Reader) (url.Values, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	form := url.Values{}
	doc.Find(`form input[type="hidden"]`).Each(func(_ int, sel *goquery.Selection) {
		name, okName := sel.Attr("name")
		value, _ := sel.Attr("value")
		if okName && name != "" {
			form.Set(name, value)
		}
	})
	return form, nil
}

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OCS share types, as defined by the files_sharing API.
const (
	shareTypeUser      = "0"
	shareTypeLink      = "3"
	shareTypeFederated = "6"
)

const sharesEndpoint = "/ocs/v1.php/apps/files_sharing/api/v1/shares"

// ocsEnvelope is the common wrapper of OCS JSON responses.
type ocsEnvelope struct {
	OCS struct {
		Meta struct {
			Status     string `json:"status"`
			StatusCode int    `json:"statuscode"`
			Message    string `json:"message"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

// ocsShare is one share entry as returned by the API.
type ocsShare struct {
	ID        json.Number `json:"id"`
	ShareType int         `json:"share_type"`
	ShareWith string      `json:"share_with"`
	URL       string      `json:"url"`
}

// ListShares returns the existing shares on remotePath as a typed list. User
// shares carry ShareWith, link shares carry URL; nothing is probed from
// optional fields downstream.
func (c *Client) ListShares(ctx context.Context, remotePath string) ([]Share, error) {
	endpoint := c.baseURL + sharesEndpoint + "?format=json&path=" + url.QueryEscape(ocsPath(remotePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create shares request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "list shares", Path: remotePath, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := decodeOCS(resp, "list shares", remotePath)
	if err != nil {
		return nil, err
	}

	var raw []ocsShare
	if err := json.Unmarshal(env.OCS.Data, &raw); err != nil {
		return nil, &RequestError{Op: "list shares", Path: remotePath, Message: "unexpected response body", Cause: err}
	}

	shares := make([]Share, 0, len(raw))
	for _, s := range raw {
		shares = append(shares, Share{
			ID:        s.ID.String(),
			ShareWith: s.ShareWith,
			URL:       s.URL,
		})
	}
	return shares, nil
}

// ShareWithUser grants account access to remotePath. Federated targets use
// shareType 6 and get a trailing slash appended to the address, a quirk of
// the server API this layer keeps to itself.
func (c *Client) ShareWithUser(ctx context.Context, remotePath, account string, federated bool) error {
	form := url.Values{}
	form.Set("path", ocsPath(remotePath))
	if federated {
		form.Set("shareType", shareTypeFederated)
		form.Set("shareWith", account+"/")
	} else {
		form.Set("shareType", shareTypeUser)
		form.Set("shareWith", account)
	}

	_, err := c.postShare(ctx, form, "share with user", remotePath)
	return err
}

// ShareByLink creates a public link share on remotePath and returns its URL.
func (c *Client) ShareByLink(ctx context.Context, remotePath string) (string, error) {
	form := url.Values{}
	form.Set("path", ocsPath(remotePath))
	form.Set("shareType", shareTypeLink)

	env, err := c.postShare(ctx, form, "share by link", remotePath)
	if err != nil {
		return "", err
	}

	var created ocsShare
	if err := json.Unmarshal(env.OCS.Data, &created); err != nil {
		return "", &RequestError{Op: "share by link", Path: remotePath, Message: "unexpected response body", Cause: err}
	}
	if created.URL == "" {
		return "", &RequestError{Op: "share by link", Path: remotePath, Message: "server returned no link URL"}
	}
	return created.URL, nil
}

func (c *Client) postShare(ctx context.Context, form url.Values, op, remotePath string) (*ocsEnvelope, error) {
	endpoint := c.baseURL + sharesEndpoint + "?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create share request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: op, Path: remotePath, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeOCS(resp, op, remotePath)
}

// decodeOCS parses an OCS envelope and turns transport or API failures into
// a RequestError. The v1 API signals success with meta statuscode 100.
func decodeOCS(resp *http.Response, op, remotePath string) (*ocsEnvelope, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Op: op, Path: remotePath, StatusCode: resp.StatusCode, Message: drainBody(resp.Body)}
	}

	var env ocsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &RequestError{Op: op, Path: remotePath, Message: "cannot decode OCS response", Cause: err}
	}
	if env.OCS.Meta.StatusCode != 100 {
		msg := env.OCS.Meta.Message
		if msg == "" {
			msg = fmt.Sprintf("OCS status %d", env.OCS.Meta.StatusCode)
		}
		return nil, &RequestError{Op: op, Path: remotePath, Message: msg}
	}
	return &env, nil
}

// ocsPath normalizes a remote path for the share API: leading slash, no
// trailing slash.
func ocsPath(remotePath string) string {
	return "/" + strings.Trim(remotePath, "/")
}

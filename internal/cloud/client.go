// Package cloud talks to an ownCloud/Nextcloud server over WebDAV (folders,
// uploads) and the OCS share API (user shares, public links). The reconciler
// consumes it through the Remote interface so runs are testable against a
// fake server.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 60 * time.Second

// ErrExists reports that a directory is already present on the server.
// Callers treat it as success when provisioning folders.
var ErrExists = errors.New("remote directory already exists")

// Share is one existing share on a remote path, either a user share
// (ShareWith set) or a link share (URL set).
type Share struct {
	ID        string
	ShareWith string
	URL       string
}

// IsLink reports whether the share is a public link share.
func (s Share) IsLink() bool { return s.URL != "" }

// Remote is the subset of server operations the reconciler drives.
type Remote interface {
	CreateDirectory(ctx context.Context, remotePath string) error
	UploadFile(ctx context.Context, remotePath, localPath string) error
	ListShares(ctx context.Context, remotePath string) ([]Share, error)
	ShareWithUser(ctx context.Context, remotePath, account string, federated bool) error
	ShareByLink(ctx context.Context, remotePath string) (string, error)
}

// RequestError reports a failed server request with enough context to tell
// the operator which path or account was involved.
type RequestError struct {
	Op         string
	Path       string
	StatusCode int
	Message    string
	Cause      error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *RequestError) Unwrap() error { return e.Cause }

// Client is the HTTP implementation of Remote, authenticated with basic auth
// plus whatever session cookies an SSO login left in the jar.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient builds a client for the server at address. The address is the
// server root, e.g. "https://cloud.example.org".
func NewClient(address, username, password string) (*Client, error) {
	address = strings.TrimRight(address, "/")
	if _, err := url.Parse(address); err != nil || address == "" {
		return nil, fmt.Errorf("invalid server address %q: %w", address, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL:  address,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
	}, nil
}

// Probe verifies the session by fetching the server capabilities.
func (c *Client) Probe(ctx context.Context) error {
	endpoint := c.baseURL + "/ocs/v1.php/cloud/capabilities?format=json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create capabilities request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: "probe", Path: "/", Message: "capabilities request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &RequestError{Op: "probe", Path: "/", StatusCode: resp.StatusCode, Message: "login rejected"}
	}
	return nil
}

// CreateDirectory issues a WebDAV MKCOL. Returns ErrExists when the folder is
// already present, which callers treat as success.
func (c *Client) CreateDirectory(ctx context.Context, remotePath string) error {
	req, err := http.NewRequestWithContext(ctx, "MKCOL", c.davURL(remotePath), nil)
	if err != nil {
		return fmt.Errorf("failed to create MKCOL request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: "mkdir", Path: remotePath, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusMethodNotAllowed:
		return ErrExists
	default:
		return &RequestError{Op: "mkdir", Path: remotePath, StatusCode: resp.StatusCode, Message: "cannot create folder"}
	}
}

// UploadFile sends the local file to remotePath with a WebDAV PUT.
func (c *Client) UploadFile(ctx context.Context, remotePath, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.davURL(remotePath), f)
	if err != nil {
		return fmt.Errorf("failed to create PUT request: %w", err)
	}
	req.ContentLength = info.Size()
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Op: "upload", Path: remotePath, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return &RequestError{Op: "upload", Path: remotePath, StatusCode: resp.StatusCode, Message: "upload rejected"}
	}
	return nil
}

// authorize attaches credentials and the OCS header to a request.
func (c *Client) authorize(req *http.Request) {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("OCS-APIRequest", "true")
}

// davURL maps a remote path to its WebDAV endpoint, escaping each segment.
func (c *Client) davURL(remotePath string) string {
	segments := strings.Split(strings.Trim(path.Clean("/"+remotePath), "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/remote.php/webdav/" + strings.Join(segments, "/")
}

// drainBody reads at most a small amount of the body for error messages.
func drainBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}

// Package backend talks to the congregation REST API. Each call site has an
// adapter that turns the backend's loose envelopes into canonical types.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	errorBodyReadLimit   int64 = 4096
	responseBodyMaxBytes int64 = 8 << 20
)

var errBaseURLRequired = errors.New("backend base url is required")

// Client is the HTTP+JSON collaborator of the gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

var _ session.Authenticator = (*Client)(nil)

// Login exchanges credentials for a token and the user profile.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (*session.LoginResult, error) {
	body, err := c.do(ctx, http.MethodPost, "auth/login", "", nil, creds)
	if err != nil {
		return nil, err
	}
	return adaptLogin(body)
}

// Logout tells the backend the token is no longer in use.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "auth/logout", token, nil, nil)
	return err
}

// List fetches one page of resource.
func (c *Client) List(ctx context.Context, token, resource string, params url.Values) (*Page, error) {
	if strings.TrimSpace(resource) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource is required")
	}
	body, err := c.do(ctx, http.MethodGet, resource, token, params, nil)
	if err != nil {
		return nil, err
	}
	return adaptPage(body)
}

// CreateUser posts a validated user form and returns the created record.
func (c *Client) CreateUser(ctx context.Context, token string, form any) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodPost, "users", token, nil, form)
	if err != nil {
		return nil, err
	}
	return adaptRecord(body)
}

func (c *Client) do(ctx context.Context, method, path, token string, params url.Values, payload any) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "backend client not configured")
	}

	target := c.buildURL(path)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal backend request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build backend request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, statusError(resp.StatusCode, msg)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyMaxBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read backend response")
	}
	return body, nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

// statusError maps a non-2xx response onto the gateway's error codes.
func statusError(status int, body []byte) error {
	message := extractMessage(body)
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))

	var code pkgerrors.Code
	switch {
	case status == http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case status == http.StatusForbidden:
		code = pkgerrors.CodeForbidden
	case status == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case status == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case status == http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = pkgerrors.CodeValidation
	default:
		code = pkgerrors.CodeDependency
	}
	if message == "" {
		message = fmt.Sprintf("backend request failed with status %d", status)
	}
	return pkgerrors.Wrap(code, cause, message)
}

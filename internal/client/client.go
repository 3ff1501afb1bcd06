// Package client talks to the maintenance request API over HTTP and hands back
// canonical model values. Every request it returns has been through
// model.Normalize, whatever casing or encoding the server used.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/manutencao/internal/model"
)

// DefaultTimeout bounds every call unless WithHTTPClient supplies a client.
const DefaultTimeout = 10 * time.Second

// Client is a Request Store client bound to one server and, after Login, one user.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing bearer token, such as one
// kept from an earlier Login. Use Me to find out whose it is.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger degraded calls report to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// LoginResult is the outcome of a login attempt. A credential mismatch is a
// result with OK false, not an error.
type LoginResult struct {
	OK      bool        `json:"ok"`
	User    *model.User `json:"user,omitempty"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Login signs in and, on success, keeps the token for later calls. Operators
// pass an empty secret.
func (c *Client) Login(ctx context.Context, role model.Role, identifier, secret string) (LoginResult, error) {
	body := map[string]string{"role": string(role), "identifier": identifier, "secret": secret}

	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &res)
	if errors.Is(err, model.ErrCredentials) {
		return LoginResult{Message: res.Message}, nil
	}
	if err != nil {
		return LoginResult{}, err
	}

	c.setToken(res.Token)
	return res, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.setToken("")
	return nil
}

// Me returns the account behind the current token. A token that is expired,
// revoked or belongs to a removed account yields model.ErrCredentials.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ping", nil, nil)
}

// Fetch lists requests newest first, optionally only those filed by
// requesterID. Failures are returned.
func (c *Client) Fetch(ctx context.Context, requesterID string) ([]model.Request, error) {
	path := "/api/requests"
	if requesterID != "" {
		path += "?" + url.Values{"requester": {requesterID}}.Encode()
	}

	var rows []model.Row
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return model.NormalizeAll(rows), nil
}

// List is Fetch for every request, except that a failure is logged and
// reported as an empty list. The next refresh is the retry.
func (c *Client) List(ctx context.Context) []model.Request {
	reqs, err := c.Fetch(ctx, "")
	if err != nil {
		c.logger.Warn("listing requests failed", "error", err)
		return []model.Request{}
	}
	return reqs
}

// Get returns one request, or an error wrapping model.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (model.Request, error) {
	var row model.Row
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(id), nil, &row); err != nil {
		return model.Request{}, err
	}
	return model.Normalize(row), nil
}

// Create files a draft and returns the id the server assigned. The draft is
// validated first so an incomplete submission never reaches the network.
func (c *Client) Create(ctx context.Context, d model.Draft) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/requests", d, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Update applies a partial update.
func (c *Client) Update(ctx context.Context, id string, p model.Patch) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/api/requests/"+url.PathEscape(id), p, nil)
}

// Delete removes a request.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/requests/"+url.PathEscape(id), nil, nil)
}

// apiError is the error body the server sends.
type apiError struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, model.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, model.ErrTransport, err)
	}

	if resp.StatusCode >= 300 {
		return statusError(method, path, resp.StatusCode, data, out)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w: %w", method, path, model.ErrTransport, err)
	}
	return nil
}

// statusError maps an HTTP error status onto the model error kinds. A 401
// body is still decoded into out so callers can read the server's message.
func statusError(method, path string, code int, data []byte, out any) error {
	var body apiError
	json.Unmarshal(data, &body)

	switch {
	case code == http.StatusBadRequest && body.Field != "":
		return &model.ValidationError{Field: body.Field, Message: body.Error}
	case code == http.StatusBadRequest:
		return fmt.Errorf("%s %s: %w: %s", method, path, model.ErrValidation, body.Error)
	case code == http.StatusUnauthorized:
		if out != nil {
			json.Unmarshal(data, out)
		}
		return fmt.Errorf("%s %s: %w", method, path, model.ErrCredentials)
	case code == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, model.ErrNotFound)
	case code >= 500:
		return fmt.Errorf("%s %s: %w: status %d", method, path, model.ErrTransport, code)
	}
	return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, code, body.Error)
}

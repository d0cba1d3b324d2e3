// Package api implements the typed client for the fintrack backend.
//
// Every endpoint returns a uniform envelope ({success, data?, message?,
// errors?}); this file decodes that envelope, normalizes transport failures
// into a single error shape, and applies the global 401 policy via a hook.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the fixed client-side timeout for every REST call.
const DefaultTimeout = 10 * time.Second

// FieldError is a field-level validation error from the backend.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the uniform error shape every failed call is converted to. A zero
// StatusCode marks a transport-level failure with no structured response.
type Error struct {
	StatusCode int
	Message    string
	Fields     []FieldError
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NotFound reports whether the error is a 404 response.
func (e *Error) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Unauthorized reports whether the error is a 401 response.
func (e *Error) Unauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// connectionError wraps a transport failure that produced no structured body.
func connectionError(err error) *Error {
	return &Error{Message: "connection error", cause: err}
}

// TokenSource supplies the current bearer token; it returns an empty string
// when the deployment authenticates via HTTP-only cookies instead.
type TokenSource func() string

// Client issues requests against the backend REST API.
type Client struct {
	baseURL        string
	http           *http.Client
	token          TokenSource
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTokenSource sets the bearer token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithUnauthorizedHandler registers the hook invoked whenever any call
// receives a 401 response.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithHTTPClient replaces the underlying HTTP client (mainly for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the canonical response schema shared by all endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []FieldError    `json:"errors"`
}

// do issues a request and decodes the envelope's data field into out (when
// non-nil). All failures come back as *Error.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return connectionError(fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return connectionError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return connectionError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return &Error{StatusCode: http.StatusUnauthorized, Message: "session expired"}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return connectionError(fmt.Errorf("read response: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return connectionError(fmt.Errorf("decode envelope: %w", err))
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg, Fields: env.Errors}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return connectionError(fmt.Errorf("decode data: %w", err))
		}
	}

	return nil
}

package syncstore

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TSherpa10/moodzy/errors"
)

// DefaultBaseURL is where the REST gateway listens by default.
const DefaultBaseURL = "http://localhost:3000"

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
	Issues  []errors.Issue
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps 400 to ErrValidation and 404 to ErrNotFound.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusBadRequest:
		return target == errors.ErrValidation
	case http.StatusNotFound:
		return target == errors.ErrNotFound
	}
	return false
}

// ClientOption configures an APIClient.
type ClientOption func(*APIClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *APIClient) {
		if c != nil {
			a.http = c
		}
	}
}

// WithRetry sets the policy for transient failures.
func WithRetry(rc errors.RetryConfig) ClientOption {
	return func(a *APIClient) {
		a.retry = rc
	}
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(a *APIClient) {
		if l != nil {
			a.logger = l
		}
	}
}

// APIClient talks to the REST gateway. Network failures and 5xx replies
// are transient and retried for GET, PATCH and DELETE; 4xx replies are not.
// POST is sent once: a lost reply may still have created the user.
type APIClient struct {
	baseURL string
	http    *http.Client
	retry   errors.RetryConfig
	logger  *slog.Logger
}

var _ API = (*APIClient)(nil)

// NewAPIClient creates a client for the gateway at baseURL.
func NewAPIClient(baseURL string, opts ...ClientOption) *APIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		retry:   errors.DefaultRetryConfig(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "syncstore-client")
	return c
}

// List returns every user, most recently created first.
func (c *APIClient) List(ctx context.Context) ([]User, error) {
	var users []User
	err := c.do(ctx, http.MethodGet, "/users", nil, http.StatusOK, &users)
	return users, err
}

// Create adds a user.
func (c *APIClient) Create(ctx context.Context, in NewUser) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/users", in, http.StatusCreated, &u)
	return u, err
}

// Update patches the user with id.
func (c *APIClient) Update(ctx context.Context, id string, p Patch) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), p, http.StatusOK, &u)
	return u, err
}

// Delete removes the user with id.
func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// Clear removes every user and returns how many were removed.
func (c *APIClient) Clear(ctx context.Context) (int, error) {
	var resp struct {
		Cleared int `json:"cleared"`
	}
	err := c.do(ctx, http.MethodDelete, "/users", nil, http.StatusOK, &resp)
	return resp.Cleared, err
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.WrapInvalid(err, "APIClient", method, "encode body")
		}
	}

	if !idempotent(method) {
		return c.once(ctx, method, path, payload, want, out)
	}

	attempt := 0
	return c.retry.Do(ctx, func() error {
		attempt++
		err := c.once(ctx, method, path, payload, want, out)
		if err != nil && errors.IsTransient(err) {
			c.logger.Debug("Request failed", "method", method, "path", path, "attempt", attempt, "error", err)
		}
		return err
	})
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (c *APIClient) once(ctx context.Context, method, path string, payload []byte, want int, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.WrapInvalid(err, "APIClient", method, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WrapTransient(err, "APIClient", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.WrapTransient(err, "APIClient", method, "read "+path)
	}

	if resp.StatusCode != want {
		apiErr := &APIError{Status: resp.StatusCode, Method: method, Path: path, Message: http.StatusText(resp.StatusCode)}
		var reply struct {
			Message string         `json:"message"`
			Issues  []errors.Issue `json:"issues"`
		}
		if json.Unmarshal(data, &reply) == nil && reply.Message != "" {
			apiErr.Message = reply.Message
			apiErr.Issues = reply.Issues
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.WrapTransient(apiErr, "APIClient", method, path)
		}
		return errors.WrapInvalid(apiErr, "APIClient", method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "APIClient", method, "decode "+path)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	return stderrors.Is(err, errors.ErrNotFound)
}

// ValidationIssues returns the issues of a 400 reply, or nil.
func ValidationIssues(err error) []errors.Issue {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return apiErr.Issues
	}
	return nil
}

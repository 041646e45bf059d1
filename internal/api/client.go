package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"

	"github.com/tuumday/hotdeal-console/internal/auth"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

// AdminAuthLevel is the minimum auth level for the admin endpoints.
const AdminAuthLevel = auth.AdminAuthLevel

// CookieClearer forgets the credential cookies, including the refresh cookie.
type CookieClearer interface {
	Clear(ctx context.Context) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for login and signup, which bypass the gateway.
// It must share the gateway's cookie jar so the refresh cookie set at login is kept.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithCookies sets the cookie jar wiped on logout.
func WithCookies(cookies CookieClearer) Option {
	return func(c *Client) {
		c.cookies = cookies
	}
}

// Client is a typed client for the hot-deal API.
type Client struct {
	gateway     *auth.Gateway
	store       *tokenstore.Store
	coordinator *auth.Coordinator
	http        *http.Client
	cookies     CookieClearer
	validate    *validator.Validate
}

// New creates a Client issuing authenticated calls through gateway.
func New(gateway *auth.Gateway, store *tokenstore.Store, coordinator *auth.Coordinator, opts ...Option) (*Client, error) {
	if gateway == nil {
		return nil, fmt.Errorf("missing gateway")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("missing refresh coordinator")
	}

	c := &Client{
		gateway:     gateway,
		store:       store,
		coordinator: coordinator,
		http:        http.DefaultClient,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call sends a request through the gateway and decodes a successful JSON response into out.
// out may be nil for endpoints whose body is irrelevant.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.gateway.Do(ctx, path, auth.Options{Method: method, Body: body})
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// post sends a JSON request outside the gateway. Used for endpoints that establish credentials.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway.BaseURL()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "method", http.MethodPost, "path", path, "error", err)
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// pathParam styles a path parameter the way generated OpenAPI clients do.
func pathParam(name string, value any) (string, error) {
	styled, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", name, err)
	}
	return styled, nil
}

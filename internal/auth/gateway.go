package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

const tracerName = "github.com/tuumday/hotdeal-console/internal/auth"

// RequestIDHeader carries a per-call identifier for correlating client and server logs.
const RequestIDHeader = "X-Request-Id"

// Options describes an API call made through the Gateway.
type Options struct {
	// Method defaults to GET.
	Method string
	// Header is merged with the auth header; it is never dropped.
	Header http.Header
	// Body is JSON encoded unless it is a Form (see encodeBody).
	Body any
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets the HTTP client used for API calls. It should carry the cookie jar
// so credentials are included on every call.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithTracerProvider sets the tracer provider for client spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) GatewayOption {
	return func(g *Gateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

// Gateway issues authenticated API calls and transparently refreshes the access token on 401.
type Gateway struct {
	baseURL     string
	store       *tokenstore.Store
	coordinator *Coordinator
	client      *http.Client
	tracer      trace.Tracer
}

// NewGateway creates a Gateway resolving paths against baseURL.
func NewGateway(baseURL string, store *tokenstore.Store, coordinator *Coordinator, opts ...GatewayOption) (*Gateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("missing base URL")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("missing refresh coordinator")
	}

	g := &Gateway{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		store:       store,
		coordinator: coordinator,
		client:      http.DefaultClient,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// BaseURL returns the API base address paths are resolved against.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Do sends the call and returns the response unmodified unless it is a 401, in which case the
// token is refreshed and the call retried once. The caller must close the response body.
//
// Returns an error wrapping ErrSessionExpired if the refresh failed, or the transport error
// if the call could not be made. Non-401 error statuses are not errors.
func (g *Gateway) Do(ctx context.Context, path string, opts Options) (*http.Response, error) {
	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, usedToken, err := g.send(ctx, method, path, opts.Header, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	slog.WarnContext(ctx, "unauthorized, refreshing access token", "method", method, "path", path)
	drainAndClose(resp)

	if err := g.coordinator.Refresh(ctx, usedToken); err != nil {
		return nil, err
	}

	// Single retry: a second 401 is handed back to the caller as-is
	slog.DebugContext(ctx, "retrying request with refreshed token", "method", method, "path", path)
	resp, _, err = g.send(ctx, method, path, opts.Header, body)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// send performs one network call with the currently stored token and returns that token.
func (g *Gateway) send(ctx context.Context, method, path string, header http.Header, body *encodedBody) (*http.Response, string, error) {
	ctx, span := g.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	rec, err := g.store.Read(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNotFound) {
			slog.WarnContext(ctx, "token store unreadable, sending request without credentials", "path", path, "error", err)
		}
		// Unauthenticated call; the server decides whether that is acceptable
		rec = tokenstore.Record{}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	for key, values := range header {
		req.Header[key] = append([]string(nil), values...)
	}
	for key, values := range headersFor(rec) {
		req.Header[key] = values
	}
	if body != nil {
		switch {
		case !body.json:
			req.Header.Set("Content-Type", body.contentType)
		case body.structured || req.Header.Get("Content-Type") == "":
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	slog.DebugContext(ctx, "request completed", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	return resp, rec.AccessToken, nil
}

// drainAndClose discards a bounded amount of the body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

// RefreshPath is the cookie-authenticated endpoint that issues a new access token.
const RefreshPath = "/user/v1/token/refresh"

// maxErrorBody bounds how much of an error response is read into error messages.
const maxErrorBody = 4 << 10

// TokenResponse is the body returned by login and refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// Record converts the response into a storable token record.
func (t TokenResponse) Record() tokenstore.Record {
	return tokenstore.Record{AccessToken: t.AccessToken, UserID: t.UserID}
}

// HTTPRefresher calls the refresh endpoint directly, never through the Gateway,
// so a rejected refresh cannot trigger another refresh.
type HTTPRefresher struct {
	client *http.Client
	url    string
}

// Compile-time check that HTTPRefresher implements Refresher
var _ Refresher = (*HTTPRefresher)(nil)

// NewHTTPRefresher creates a refresher for the API at baseURL. The client must carry the
// cookie jar holding the refresh cookie.
func NewHTTPRefresher(baseURL string, client *http.Client) *HTTPRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRefresher{
		client: client,
		url:    strings.TrimSuffix(baseURL, "/") + RefreshPath,
	}
}

// Refresh posts to the refresh endpoint. Any transport error or non-2xx status is a failure.
func (r *HTTPRefresher) Refresh(ctx context.Context) (tokenstore.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return tokenstore.Record{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return tokenstore.Record{}, &RefreshError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return tokenstore.Record{}, fmt.Errorf("decoding refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return tokenstore.Record{}, fmt.Errorf("refresh response without access token")
	}

	return tok.Record(), nil
}

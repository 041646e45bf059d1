package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

// BuildHeaders returns the Authorization header for the stored access token,
// or an empty header if no token is stored.
func BuildHeaders(ctx context.Context, store *tokenstore.Store) http.Header {
	rec, err := store.Read(ctx)
	if err != nil {
		return http.Header{}
	}
	return headersFor(rec)
}

// headersFor builds the bearer header for rec using oauth2's header formatting.
func headersFor(rec tokenstore.Record) http.Header {
	if rec.Empty() {
		return http.Header{}
	}

	// SetAuthHeader needs a request to write into
	req := &http.Request{Header: make(http.Header)}
	tok := &oauth2.Token{AccessToken: rec.AccessToken, TokenType: "Bearer"}
	tok.SetAuthHeader(req)
	return req.Header
}

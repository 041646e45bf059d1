// Package auth attaches the stored access token to outbound API calls and renews it
// transparently when the API answers 401.
//
// # Components
//
//   - BuildHeaders derives the Authorization header from the token store
//   - Coordinator runs at most one refresh at a time; concurrent callers wait for its outcome
//   - Gateway wraps every API call, encodes bodies and retries once after a successful refresh
//   - HTTPRefresher exchanges the refresh cookie for a new access token
//
// A failed refresh is terminal: the store is cleared, every waiting caller receives
// ErrSessionExpired, and the coordinator refuses further refreshes until Reset is called
// after a new login.
//
//	store, _ := tokenstore.New(durable, session)
//	coord, _ := auth.NewCoordinator(auth.NewHTTPRefresher(baseURL, httpClient), store)
//	gw, _ := auth.NewGateway(baseURL, store, coord, auth.WithHTTPClient(httpClient))
//	resp, err := gw.Do(ctx, "/admin/users", auth.Options{})
package auth

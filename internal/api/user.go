package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tuumday/hotdeal-console/internal/auth"
)

const (
	signupPath = "/user/v1/"
	loginPath  = "/user/v1/login"
	logoutPath = "/user/v1/logout"
	mePath     = "/user/v1/me"
)

// Login authenticates with email and password. The access token is kept in the durable scope
// when remember is set, otherwise for the session only. The refresh cookie set by the server
// lands in the shared cookie jar.
func (c *Client) Login(ctx context.Context, req LoginRequest, remember bool) (auth.TokenResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := c.validate.Struct(req); err != nil {
		return auth.TokenResponse{}, fmt.Errorf("invalid login: %w", err)
	}

	var tok auth.TokenResponse
	if err := c.post(ctx, loginPath, req, &tok); err != nil {
		return auth.TokenResponse{}, err
	}
	if tok.AccessToken == "" {
		return auth.TokenResponse{}, errors.New("login response without access token")
	}

	if err := c.store.Save(ctx, tok.Record(), remember); err != nil {
		return auth.TokenResponse{}, fmt.Errorf("saving token: %w", err)
	}
	c.coordinator.Reset()

	slog.InfoContext(ctx, "logged in", "user_id", tok.UserID, "remember", remember)
	return tok, nil
}

// Signup registers a new account. New accounts need admin approval before they can log in.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if err := c.validate.Struct(req); err != nil {
		return User{}, fmt.Errorf("invalid signup: %w", err)
	}

	var user User
	if err := c.post(ctx, signupPath, req, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Logout ends the session on the server and forgets all local credentials.
// Local credentials are kept if the server rejects the logout.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, logoutPath, nil, nil); err != nil {
		return err
	}
	return c.forget(ctx)
}

// forget clears stored tokens and cookies.
func (c *Client) forget(ctx context.Context) error {
	var errs []error
	if err := c.store.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.cookies != nil {
		if err := c.cookies.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clearing cookies: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, mePath, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// CheckLogin reports whether the stored credentials are accepted by the server,
// refreshing them if needed. Any failure counts as logged out.
func (c *Client) CheckLogin(ctx context.Context) bool {
	if _, err := c.Me(ctx); err != nil {
		slog.DebugContext(ctx, "login check failed", "error", err)
		return false
	}
	return true
}

// RequireLogin fails with ErrLoginRequired when no token is stored, without calling the API.
func (c *Client) RequireLogin(ctx context.Context) error {
	if !c.store.HasToken(ctx) {
		return ErrLoginRequired
	}
	return nil
}

// RequireAdmin checks login and then the user's auth level, returning the user on success.
func (c *Client) RequireAdmin(ctx context.Context) (User, error) {
	if err := c.RequireLogin(ctx); err != nil {
		return User{}, err
	}
	user, err := c.Me(ctx)
	if err != nil {
		return User{}, err
	}
	if !user.IsAdmin() {
		return User{}, ErrInsufficientPrivilege
	}
	return user, nil
}

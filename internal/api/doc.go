// Package api is a typed client for the hot-deal API.
//
// Every call except login and signup goes through an auth.Gateway, so an expired access token
// is refreshed transparently. Unsuccessful responses are returned as *StatusError carrying the
// backend's detail message; a failed refresh surfaces as auth.ErrSessionExpired.
package api

package auth

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when the access token could not be refreshed.
// The token store has been cleared and the user must log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// RefreshError reports a refresh call answered with a non-success status.
type RefreshError struct {
	StatusCode int
	Body       string
}

func (e *RefreshError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("token refresh failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Body)
}

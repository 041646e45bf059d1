package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrLoginRequired is returned by guarded operations when no token is stored.
	ErrLoginRequired = errors.New("login required")
	// ErrInsufficientPrivilege is returned when an admin operation is attempted by a regular user.
	ErrInsufficientPrivilege = errors.New("administrator privileges required")
)

const maxErrorBody = 4 << 10

// StatusError is an unsuccessful API response other than the 401 absorbed by the gateway.
type StatusError struct {
	StatusCode int
	// Detail is the backend's "detail" message, or the raw body when there is none.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Detail)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// newStatusError reads a bounded amount of the body and extracts the detail message.
// Validation errors carry a list of problems as detail; those are kept as compact JSON.
func newStatusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{StatusCode: resp.StatusCode}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		statusErr.Detail = strings.TrimSpace(string(body))
		return statusErr
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		statusErr.Detail = detail
		return statusErr
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err == nil {
		statusErr.Detail = compact.String()
	} else {
		statusErr.Detail = string(payload.Detail)
	}
	return statusErr
}

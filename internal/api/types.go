package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// naiveLayout is how the backend serializes timestamps stored without a zone.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Time accepts both RFC 3339 and zone-less timestamps. Zone-less values are taken as UTC.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.Parse(naiveLayout, s)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// MarshalYAML renders the timestamp as RFC 3339 for yaml output.
func (t Time) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// User is an account as returned by /user/v1/me and the admin endpoints.
type User struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Nickname  string    `json:"nickname" yaml:"nickname"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	AuthLevel int       `json:"auth_level" yaml:"auth_level"`
	LastLogin *Time     `json:"last_login" yaml:"last_login"`
	CreatedAt Time      `json:"created_at" yaml:"created_at"`
}

// IsAdmin reports whether the user may use the admin endpoints.
func (u User) IsAdmin() bool {
	return u.AuthLevel >= AdminAuthLevel
}

// UserDetail is a user together with the keywords they track.
type UserDetail struct {
	User     `yaml:",inline"`
	Keywords []Keyword `json:"keywords" yaml:"keywords"`
}

// UserList is a page of users.
type UserList struct {
	Items []User `json:"items" yaml:"items"`
	Total int    `json:"total" yaml:"total"`
}

// Keyword is a tracked search term.
type Keyword struct {
	ID    int    `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	WDate Time   `json:"wdate" yaml:"wdate"`
}

// Site is a hot-deal site the crawler searches.
type Site struct {
	Name              string `json:"name" yaml:"name"`
	DisplayName       string `json:"display_name" yaml:"display_name"`
	SearchURLTemplate string `json:"search_url_template" yaml:"search_url_template"`
}

// WorkerStatus is the outcome of a crawler run.
type WorkerStatus string

const (
	WorkerStatusSuccess WorkerStatus = "SUCCESS"
	WorkerStatusFail    WorkerStatus = "FAIL"
	WorkerStatusRunning WorkerStatus = "RUNNING"
)

// WorkerLog records one crawler run.
type WorkerLog struct {
	ID         int          `json:"id" yaml:"id"`
	RunAt      Time         `json:"run_at" yaml:"run_at"`
	Status     WorkerStatus `json:"status" yaml:"status"`
	ItemsFound int          `json:"items_found" yaml:"items_found"`
	Message    *string      `json:"message" yaml:"message"`
	Details    *string      `json:"details" yaml:"details"`
}

type itemList[T any] struct {
	Items []T `json:"items"`
}

// LoginRequest is the body of POST /user/v1/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the body of POST /user/v1/.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4"`
	Nickname string `json:"nickname" validate:"required,max=50"`
}

type keywordRequest struct {
	Title string `json:"title" validate:"required,max=100"`
}

type messageResponse struct {
	Message string `json:"message"`
}

package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the HTTP status of a failed GitHub call so callers can
// distinguish a deleted entity (404) from auth problems or transient failures.
type APIError struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("github: %s returned %d", e.Endpoint, e.Status)
}

func newAPIError(status int, endpoint string, body []byte) *APIError {
	// GitHub error bodies look like {"message": "Not Found", "documentation_url": ...}
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &APIError{
		Status:   status,
		Endpoint: endpoint,
		Message:  payload.Message,
	}
}

// IsNotFound reports whether err (or anything it wraps) is a GitHub 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a GitHub 401 or 403.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

package licensing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error codes used to classify API failures.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeServer       = "server_error"
	CodeUnknown      = "unknown"
)

// Sentinels for errors.Is checks; matching is by Code.
var (
	ErrUnauthorized = &APIError{Code: CodeUnauthorized}
	ErrForbidden    = &APIError{Code: CodeForbidden}
	ErrNotFound     = &APIError{Code: CodeNotFound}
	ErrConflict     = &APIError{Code: CodeConflict}
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return e.Message
	}
	return "api " + e.Path + ": " + e.Message
}

// Is matches another *APIError with the same Code.
func (e *APIError) Is(target error) bool {
	var other *APIError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// Message returns the user facing text of err. API errors yield the server
// message; anything else falls back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func newAPIError(status int, path string, body []byte) *APIError {
	msg := extractMessage(body)
	if msg == "" {
		msg = statusMessage(status)
	}
	return &APIError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: msg,
		Path:    path,
	}
}

// extractMessage pulls the most specific message out of an error body. The
// backend is inconsistent about where it puts it, so the fields are tried
// in a fixed order.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"domain", "detail", "message"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
		if s, ok := obj["error"].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if strings.HasPrefix(trimmed, "<") {
		return ""
	}
	return trimmed
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized - Please log in"
	case http.StatusForbidden:
		return "Forbidden - You do not have permission"
	case http.StatusNotFound:
		return "The requested resource was not found"
	case http.StatusConflict:
		return "A conflict occurred. This item already exists."
	case http.StatusInternalServerError:
		return "Internal Server Error - Please try again later"
	}
	if status >= 500 {
		return "Internal Server Error - Please try again later"
	}
	return "Unexpected response from server (" + http.StatusText(status) + ")"
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return CodeBadRequest
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status >= 500:
		return CodeServer
	default:
		return CodeUnknown
	}
}

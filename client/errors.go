package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// APIError is a non-2xx response of the API.
// Fields holds per-field validation messages (HTTP 400).
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = strings.Join(parts, "; ")
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

// Is maps status codes to the package sentinels, so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}

// newAPIError decodes an error body: either {"error": msg} or {field: msg}.
func newAPIError(code int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: code}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	if msg, ok := fields["error"].(string); ok && len(fields) == 1 {
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Fields = make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			apiErr.Fields[k] = s
		} else {
			apiErr.Fields[k] = fmt.Sprint(v)
		}
	}
	return apiErr
}

package bigip

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the device.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`

	// Code is the status code the device reports in its error body.
	Code int `json:"code"`

	// Message is the device's error message.
	Message string `json:"message"`

	// Method and Path identify the failed request.
	Method string `json:"-"`
	Path   string `json:"-"`
}

// Error returns the device's message verbatim.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPStatus returns the HTTP status code of the response.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// IsNotFound reports whether err is a 404 from the device.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// newAPIError decodes an iControl error body. Bodies that are not JSON are
// kept as the message.
func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Method: method, Path: path}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Code == 0 {
		apiErr.Code = status
	}
	return apiErr
}

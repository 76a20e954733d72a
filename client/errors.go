package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Vercel API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
		return e
	}

	e.Message = http.StatusText(status)
	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("vercel api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("vercel api: %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// IsNotFound reports whether err is a 404 from the Vercel API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ABOUTME: Error taxonomy for forum API calls
// ABOUTME: Maps transport failures and HTTP status codes to caller-visible errors

package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// API errors
var (
	// ErrRateLimited is returned for HTTP 429. It is terminal for the
	// attempt: the caller backs off, nothing retries automatically.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthorized is returned for HTTP 401. The session layer reacts
	// by discarding the credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-2xx response outside the dedicated sentinels, carrying
// the server's human-readable message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// errorBody is the error payload shape the server emits. Some endpoints use
// "error", others "message"; either may be absent.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// serverMessage extracts a human-readable message from an error response
// body, falling back to a generic one. A body that is not JSON at all must
// not crash the caller.
func serverMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return "request failed"
}

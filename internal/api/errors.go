package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError is a non-2xx response. Message is the server's reason, if it
// sent one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// ServerMessage returns the reason from the response body.
func (e *StatusError) ServerMessage() string {
	return e.Message
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// errorBody is the backend's error shape. Some endpoints use "message"
// instead of "error".
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) message() string {
	if s := strings.TrimSpace(b.Error); s != "" {
		return s
	}
	return strings.TrimSpace(b.Message)
}

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the photo service. The raw status is
// preserved: a caller may still branch on a 401 even though the transport
// has already reacted to it globally.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not a
// server error.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

// IsForbidden reports whether err is a 403 from the server.
func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

package client

import (
	"errors"
	"fmt"

	"github.com/mschirtzinger/dodash/internal/schema"
)

var (
	// ErrConflict is returned when a conditional push finds the server
	// document changed since it was fetched (HTTP 409).
	ErrConflict = errors.New("document changed on server")

	// ErrNoActiveList is returned by task mutations when nothing is selected.
	ErrNoActiveList = errors.New("no active list")
)

// NetworkError is a transport failure: the server could not be reached or
// the exchange did not complete.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx response other than 409.
type ServerError struct {
	Status int
	Msg    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsNotFound reports whether err names a list or task missing from the
// mirror.
func IsNotFound(err error) bool {
	return schema.IsNotFound(err)
}

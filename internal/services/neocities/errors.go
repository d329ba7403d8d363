package neocities

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned by Upload when a local file does not exist.
	ErrFileNotFound = errors.New("neocities: file not found")

	// ErrPathOutsideRoot is returned when a path cannot be expressed relative
	// to the site root.
	ErrPathOutsideRoot = errors.New("neocities: path outside site root")
)

// TransportError is a network failure or an undecodable response body.
// API-level failures reported inside a valid body are not TransportErrors.
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("neocities: %s (status %d): %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("neocities: %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a failure reported by the API in a response body.
type APIError struct {
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("neocities api error: %s", e.Message)
	}
	return fmt.Sprintf("neocities api error: %s: %s", e.Type, e.Message)
}

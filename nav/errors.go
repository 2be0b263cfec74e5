package nav

import (
	"errors"
	"fmt"
)

// ErrStatus is wrapped by StatusError for every non-2xx response.
var ErrStatus = errors.New("nav: unexpected status")

// ErrTooLarge is returned when a response body exceeds the fetcher's limit.
var ErrTooLarge = errors.New("nav: response too large")

// StatusError reports a retrieval that completed with a non-success status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nav: %s: status %d", e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

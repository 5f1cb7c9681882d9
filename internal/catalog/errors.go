package catalog

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrNotFound is matched by an APIError carrying 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is matched by an APIError carrying 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable is matched by a TransportError raised while the circuit breaker is open.
	ErrUnavailable = errors.New("catalog API temporarily unavailable")
)

// APIError is a response from the remote API with a status outside the operation's success set.
// Message is always set; Reason carries the body's "error" field when the server sent one.
type APIError struct {
	Op      string
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// Is lets callers test status classes with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// TransportError is a failure to get any response from the remote API.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrUnavailable &&
		(errors.Is(e.Err, gobreaker.ErrOpenState) || errors.Is(e.Err, gobreaker.ErrTooManyRequests))
}

// Message turns an error returned by the client into a message fit for display.
// Server-provided messages are preferred; transport failures fall back to the underlying error text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrUnavailable) {
		return ErrUnavailable.Error()
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Err.Error()
	}
	return err.Error()
}

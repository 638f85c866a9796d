package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// StatusClass buckets provider HTTP failures so callers can present
// them uniformly without parsing status codes themselves.
type StatusClass int

const (
	StatusUnknown StatusClass = iota
	StatusBadRequest
	StatusAuth
	StatusForbidden
	StatusRateLimited
	StatusServerUnavailable
)

func (c StatusClass) String() string {
	switch c {
	case StatusBadRequest:
		return "bad_request"
	case StatusAuth:
		return "auth"
	case StatusForbidden:
		return "forbidden"
	case StatusRateLimited:
		return "rate_limited"
	case StatusServerUnavailable:
		return "server_unavailable"
	default:
		return "unknown"
	}
}

func classifyStatus(code int) StatusClass {
	switch {
	case code == 400:
		return StatusBadRequest
	case code == 401:
		return StatusAuth
	case code == 403:
		return StatusForbidden
	case code == 429:
		return StatusRateLimited
	case code >= 500 && code <= 599:
		return StatusServerUnavailable
	default:
		return StatusUnknown
	}
}

// ProviderError is a non-2xx provider response. Body preserves the
// provider's error payload for diagnostics.
type ProviderError struct {
	StatusCode int
	Class      StatusClass
	Body       string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider request failed: status %d (%s)", e.StatusCode, e.Class)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Message returns a short user-facing description of the failure.
func (e *ProviderError) Message() string {
	switch e.Class {
	case StatusBadRequest:
		return "Invalid request to the provider"
	case StatusAuth:
		return "Authorization error. Check your API key"
	case StatusForbidden:
		return "Access denied"
	case StatusRateLimited:
		return "Request limit exceeded. Try again later"
	case StatusServerUnavailable:
		return "The provider is unavailable. Try again later"
	default:
		return fmt.Sprintf("Provider error: %d", e.StatusCode)
	}
}

var (
	// ErrNoConnectivity marks transport failures where the provider
	// was never reached.
	ErrNoConnectivity = errors.New("no network connection to the provider")
	// ErrTimeout marks requests that exceeded the HTTP timeout.
	ErrTimeout = errors.New("provider request timed out")
)

// classifyTransport maps a transport-level error from http.Client.Do
// into the connectivity/timeout taxonomy. Context cancellation passes
// through untouched.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %v", ErrNoConnectivity, err)
	}

	return err
}

package airos

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// Kind represents the category of error that occurred
type Kind int

const (
	// KindTransport indicates a network-level fault (timeout, refused
	// connection, DNS failure). Always retryable by caller policy; the
	// library itself never retries beyond the single re-login.
	KindTransport Kind = iota
	// KindAuthDenied indicates the device rejected the credentials
	KindAuthDenied
	// KindDialectUnknown indicates no known login endpoint produced a
	// recognizable response - a genuinely unrecognized device, not just
	// wrong credentials
	KindDialectUnknown
	// KindMalformedStatus indicates a mandatory identity field was missing
	// or unparseable in a status payload
	KindMalformedStatus
	// KindDiscoveryTimeout indicates a single-device discovery probe got no
	// valid reply within the listening window
	KindDiscoveryTimeout
)

// TransportSubtype provides more specific network fault classification
type TransportSubtype int

const (
	TransportGeneral TransportSubtype = iota
	TransportTimeout
	TransportConnectionRefused
	TransportDNS
	TransportHostUnreachable
	TransportNetworkUnreachable
)

// String returns a human-readable name for the error kind
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport Error"
	case KindAuthDenied:
		return "Authentication Denied"
	case KindDialectUnknown:
		return "Unrecognized Firmware Dialect"
	case KindMalformedStatus:
		return "Malformed Status Payload"
	case KindDiscoveryTimeout:
		return "Discovery Timeout"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error represents a fault during device communication. Context attached to
// an Error (Payload) is always redacted before it gets here; raw device
// responses never travel inside error values.
type Error struct {
	Kind       Kind             // Category of error
	Message    string           // Human-readable error message
	StatusCode int              // HTTP status code (if applicable)
	Err        error            // Underlying error (if any)
	Subtype    TransportSubtype // More specific transport fault type
	Host       string           // Device host (for context)
	Payload    string           // Redacted payload excerpt (if applicable)
	Retryable  bool             // Whether the error is retryable
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the error stems from a deadline or I/O timeout
func (e *Error) Timeout() bool {
	return e.Subtype == TransportTimeout
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ClassifyTransportError analyzes a network-level error and returns a
// transport Error with the most specific subtype it can determine.
func ClassifyTransportError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{
			Kind:      KindTransport,
			Message:   "request timed out",
			Err:       err,
			Subtype:   TransportTimeout,
			Host:      host,
			Retryable: true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Kind:      KindTransport,
			Message:   fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:       err,
			Subtype:   TransportDNS,
			Host:      host,
			Retryable: false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{
				Kind:      KindTransport,
				Message:   "device refused connection",
				Err:       err,
				Subtype:   TransportConnectionRefused,
				Host:      host,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &Error{
				Kind:      KindTransport,
				Message:   "host unreachable",
				Err:       err,
				Subtype:   TransportHostUnreachable,
				Host:      host,
				Retryable: true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{
				Kind:      KindTransport,
				Message:   "network unreachable",
				Err:       err,
				Subtype:   TransportNetworkUnreachable,
				Host:      host,
				Retryable: true,
			}
		}
		if opErr.Timeout() {
			return &Error{
				Kind:      KindTransport,
				Message:   "request timed out",
				Err:       err,
				Subtype:   TransportTimeout,
				Host:      host,
				Retryable: true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &Error{
				Kind:      KindTransport,
				Message:   "request timed out",
				Err:       err,
				Subtype:   TransportTimeout,
				Host:      host,
				Retryable: true,
			}
		}
		// Recursively classify the wrapped error
		classified := ClassifyTransportError(urlErr.Err, host)
		classified.Err = err
		return classified
	}

	return &Error{
		Kind:      KindTransport,
		Message:   "network error occurred",
		Err:       err,
		Subtype:   TransportGeneral,
		Host:      host,
		Retryable: true,
	}
}

// newAuthDeniedError creates an authentication rejection error
func newAuthDeniedError(host string, statusCode int) *Error {
	return &Error{
		Kind:       KindAuthDenied,
		Message:    "device rejected credentials",
		StatusCode: statusCode,
		Host:       host,
		Retryable:  false,
	}
}

// newDialectUnknownError creates an unrecognized-device error
func newDialectUnknownError(host string) *Error {
	return &Error{
		Kind:      KindDialectUnknown,
		Message:   "no known login endpoint produced a recognizable response",
		Host:      host,
		Retryable: false,
	}
}

// NewMalformedStatusError creates an error for a status payload missing a
// mandatory identity field. The attached payload must already be redacted.
func NewMalformedStatusError(message string, redactedPayload string) *Error {
	return &Error{
		Kind:      KindMalformedStatus,
		Message:   message,
		Payload:   redactedPayload,
		Retryable: false,
	}
}

// NewDiscoveryTimeoutError creates an error for a single-device probe that
// received no valid reply within the listening window.
func NewDiscoveryTimeoutError(target string) *Error {
	return &Error{
		Kind:      KindDiscoveryTimeout,
		Message:   fmt.Sprintf("no valid discovery reply from %s within the listening window", target),
		Host:      target,
		Retryable: true,
	}
}

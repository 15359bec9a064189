// Package nrerrors carries the pipeline's error taxonomy and retry helpers.
//
// Workflow steps classify failures into kinds so callers can decide between
// degrading to the next strategy, refreshing auth, or failing the topic.
// Orthogonally, errors are transient (worth retrying) or permanent.
package nrerrors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuthExpired: a product RPC returned 401/403 or an auth redirect.
	KindAuthExpired
	// KindOverlayNotFound: an expected dialog or element was absent after
	// its triggering action.
	KindOverlayNotFound
	// KindRPCFailure: a non-auth product RPC failure.
	KindRPCFailure
	// KindGenerationFailed: the studio reported an error phrase or a
	// failed artifact status.
	KindGenerationFailed
	// KindTimeout: a phase deadline fired.
	KindTimeout
	// KindDownloadFailed: neither the API nor the browser path produced a
	// file on disk.
	KindDownloadFailed
	// KindConfig: missing secret or executable, detected before any
	// network I/O.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindAuthExpired:
		return "auth_expired"
	case KindOverlayNotFound:
		return "overlay_not_found"
	case KindRPCFailure:
		return "rpc_failure"
	case KindGenerationFailed:
		return "generation_failed"
	case KindTimeout:
		return "timeout"
	case KindDownloadFailed:
		return "download_failed"
	case KindConfig:
		return "config_error"
	default:
		return "unknown"
	}
}

// Error is a kinded pipeline error. Op names the failing operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from an error chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// AuthExpired marks err as an authentication failure requiring re-login.
func AuthExpired(op string, err error) error {
	return &Error{Kind: KindAuthExpired, Op: op, Err: err}
}

// OverlayNotFound reports a missing dialog or element after op.
func OverlayNotFound(op string, err error) error {
	return &Error{Kind: KindOverlayNotFound, Op: op, Err: err}
}

// RPCFailure reports a non-auth product RPC failure.
func RPCFailure(op string, err error) error {
	return &Error{Kind: KindRPCFailure, Op: op, Err: err}
}

// GenerationFailed reports a studio-side generation error.
func GenerationFailed(op, reason string) error {
	return &Error{Kind: KindGenerationFailed, Op: op, Err: errors.New(reason)}
}

// PhaseTimeout reports an expired phase deadline.
func PhaseTimeout(op string, limit time.Duration) error {
	return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf("deadline %s exceeded", limit)}
}

// DownloadFailed reports that no strategy yielded a file on disk.
func DownloadFailed(op string, err error) error {
	return &Error{Kind: KindDownloadFailed, Op: op, Err: err}
}

// ConfigError reports missing configuration, raised before network I/O.
func ConfigError(op string, err error) error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// TransientError marks an error as retryable.
type TransientError struct {
	Err           error
	StatusCode    int
	SuggestedWait time.Duration
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// TransientHTTP wraps a retryable HTTP failure with its status code.
func TransientHTTP(err error, statusCode int) error {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// PermanentError marks an error as not worth retrying.
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	switch KindOf(err) {
	case KindRPCFailure:
		return true
	case KindAuthExpired, KindOverlayNotFound, KindGenerationFailed,
		KindTimeout, KindDownloadFailed, KindConfig:
		return false
	}

	if isNetworkError(err) {
		return true
	}
	if code := extractHTTPStatusCode(err); code > 0 {
		return isTransientHTTPStatus(code)
	}
	if isSyscallError(err) {
		return true
	}
	return false
}

// IsAuthFailure reports whether err indicates expired or rejected credentials.
func IsAuthFailure(err error) bool {
	if KindOf(err) == KindAuthExpired {
		return true
	}
	code := extractHTTPStatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	lower := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.EPIPE:
			return true
		}
	}
	return false
}

// extractHTTPStatusCode pulls a status code from wrapper types when present.
func extractHTTPStatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		return permanentErr.StatusCode
	}
	return 0
}

func isTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

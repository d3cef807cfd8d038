// Package checks provides base functionality for all checker implementations.
package checks

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"webmonitor/internal/storage"
)

// Failure descriptions recorded for transport errors.
const (
	ErrTextTimeout          = "Timeout"
	ErrTextSSL              = "SSL Error"
	ErrTextTooManyRedirects = "Too Many Redirects"
	ErrTextConnection       = "Connection Failed / Max Retries Exceeded"
	ErrTextDNS              = "DNS Resolution Failed"
	ErrTextUnknownPrefix    = "Unknown Error: "
)

// errTooManyRedirects is returned by the redirect policy once the limit is hit.
var errTooManyRedirects = errors.New("stopped after too many redirects")

// Result is the outcome of a single site check.
type Result struct {
	Status    string
	Ms        int64
	Code      int
	Error     string
	CheckedAt time.Time
}

// Record converts the result into a history record.
func (r *Result) Record() *storage.ResponseRecord {
	return &storage.ResponseRecord{
		Time:   r.CheckedAt.Format(storage.TimeLayout),
		Status: r.Status,
		Ms:     r.Ms,
		Code:   r.Code,
		Error:  r.Error,
	}
}

// BaseChecker provides common functionality for all checker implementations.
// It holds the classification thresholds and result constructors.
type BaseChecker struct {
	degradedAfter time.Duration
}

// NewBaseChecker creates a new base checker instance.
func NewBaseChecker(degradedAfter time.Duration) *BaseChecker {
	return &BaseChecker{degradedAfter: degradedAfter}
}

// CreateResponseResult classifies a received HTTP response.
//
// Parameters:
//   - code: HTTP status code
//   - elapsed: Time until the response body was read
//
// Returns:
//   - *Result: down for 4xx/5xx, high_latency for 3xx or slow responses, up otherwise
func (b *BaseChecker) CreateResponseResult(code int, elapsed time.Duration) *Result {
	ms := elapsed.Milliseconds()

	var status string
	switch {
	case code >= 400:
		status = storage.StatusDown
	case code >= 300:
		status = storage.StatusHighLatency
	case ms > b.degradedAfter.Milliseconds():
		status = storage.StatusHighLatency
	default:
		status = storage.StatusUp
	}

	var msg string
	if status == storage.StatusDown {
		msg = fmt.Sprintf("HTTP %d (Error)", code)
	} else {
		msg = http.StatusText(code)
		if msg == "" {
			msg = "OK"
		}
	}

	return &Result{
		Status:    status,
		Ms:        ms,
		Code:      code,
		Error:     msg,
		CheckedAt: time.Now(),
	}
}

// CreateErrorResult creates a down result for a request that never produced
// a response. Response time and status code are recorded as zero.
func (b *BaseChecker) CreateErrorResult(description string) *Result {
	return &Result{
		Status:    storage.StatusDown,
		Error:     description,
		CheckedAt: time.Now(),
	}
}

// DescribeError maps a transport error to its recorded description and
// reports whether another attempt may succeed.
//
// Parameters:
//   - err: Error returned by the HTTP client
//
// Returns:
//   - string: Human-readable failure description
//   - bool: True for timeouts and connection failures
func (b *BaseChecker) DescribeError(err error) (string, bool) {
	var (
		dnsErr      *net.DNSError
		netErr      net.Error
		opErr       *net.OpError
		unknownCA   x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
	)

	switch {
	case errors.Is(err, errTooManyRedirects):
		return ErrTextTooManyRedirects, false
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return ErrTextDNS, false
	case errors.As(err, &unknownCA),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidCert),
		errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr):
		return ErrTextSSL, false
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTextTimeout, true
	case errors.As(err, &opErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return ErrTextConnection, true
	default:
		return ErrTextUnknownPrefix + err.Error(), false
	}
}

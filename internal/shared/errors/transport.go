package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Code classifies a transport failure.
type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeCertificate Code = "certificate"
	CodeConnection  Code = "connection"
	CodeTimeout     Code = "timeout"
	CodeCanceled    Code = "canceled"
	CodeStatus      Code = "status"
)

// AllowsHostFallback reports whether a failure of this class may be retried
// once against the alternate host form.
func (c Code) AllowsHostFallback() bool {
	return c == CodeCertificate || c == CodeConnection
}

// TransportError wraps a failed outbound call with its classification.
type TransportError struct {
	Code Code
	Op   string
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.URL, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError classifies err and wraps it.
func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{Code: Classify(err), Op: op, URL: url, Err: err}
}

// CodeOf returns the code carried by a TransportError in err's chain, or
// classifies err directly.
func CodeOf(err error) Code {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Code
	}
	return Classify(err)
}

// Classify maps an error to a Code. Typed errors are inspected first; message
// matching is only used for errors that carry no structure.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return CodeStatus
	}
	if errors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	if isCertificateError(err) {
		return CodeCertificate
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}
	if isConnectionError(err) {
		return CodeConnection
	}
	return classifyMessage(err.Error())
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	return errors.As(err, &recordErr)
}

func isConnectionError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
			syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read"
	}
	return false
}

var (
	certificatePatterns = []string{"certificate", "x509", "err_cert", "ssl", "tls:"}
	connectionPatterns  = []string{
		"connection refused",
		"econnrefused",
		"failed to fetch",
		"connection reset",
		"no such host",
		"network is unreachable",
	}
	timeoutPatterns = []string{"timeout", "deadline exceeded"}
)

func classifyMessage(msg string) Code {
	lower := strings.ToLower(msg)
	for _, pattern := range certificatePatterns {
		if strings.Contains(lower, pattern) {
			return CodeCertificate
		}
	}
	for _, pattern := range connectionPatterns {
		if strings.Contains(lower, pattern) {
			return CodeConnection
		}
	}
	for _, pattern := range timeoutPatterns {
		if strings.Contains(lower, pattern) {
			return CodeTimeout
		}
	}
	return CodeUnknown
}

package httpclient

import (
	"errors"
	"fmt"
)

// ErrorKind classifies client errors.
type ErrorKind int

const (
	// KindInvalidConfig indicates a ClientConfig that failed validation.
	KindInvalidConfig ErrorKind = iota + 1
	// KindTLSInit indicates the TLS context could not be built.
	KindTLSInit
	// KindReactorInit indicates the dispatcher or pool could not be started.
	KindReactorInit
	// KindAuthRegistration indicates an auth scheme could not be registered.
	KindAuthRegistration
	// KindClosed indicates an operation on a closed client.
	KindClosed
	// KindUnsupportedScheme indicates a request URL scheme with no strategy.
	KindUnsupportedScheme
	// KindRequestFailed indicates a request that could not be completed.
	KindRequestFailed
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindTLSInit:
		return "tls_init"
	case KindReactorInit:
		return "reactor_init"
	case KindAuthRegistration:
		return "auth_registration"
	case KindClosed:
		return "closed"
	case KindUnsupportedScheme:
		return "unsupported_scheme"
	case KindRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

// ClientError is the error type returned by Create and by Client operations.
type ClientError struct {
	Kind ErrorKind
	// Op names the step that failed, e.g. "build tls context".
	Op string
	// Cause is the underlying error, if any.
	Cause error
}

// Sentinel values for errors.Is. They match any ClientError of their kind.
var (
	ErrInvalidConfig     = &ClientError{Kind: KindInvalidConfig}
	ErrTLSInit           = &ClientError{Kind: KindTLSInit}
	ErrReactorInit       = &ClientError{Kind: KindReactorInit}
	ErrAuthRegistration  = &ClientError{Kind: KindAuthRegistration}
	ErrClosed            = &ClientError{Kind: KindClosed}
	ErrUnsupportedScheme = &ClientError{Kind: KindUnsupportedScheme}
	ErrRequestFailed     = &ClientError{Kind: KindRequestFailed}
)

// ErrSocketTimeout is the cause of a request that saw no data for longer
// than the configured socket timeout.
var ErrSocketTimeout = errors.New("socket timeout")

// Error implements the error interface.
func (e *ClientError) Error() string {
	msg := "httpclient: " + e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches a bare sentinel of the same kind.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Op == "" && t.Cause == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first ClientError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is a ClientError of kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func newError(kind ErrorKind, op string, cause error) *ClientError {
	return &ClientError{Kind: kind, Op: op, Cause: cause}
}

func invalidConfig(format string, args ...any) *ClientError {
	return &ClientError{Kind: KindInvalidConfig, Cause: fmt.Errorf(format, args...)}
}

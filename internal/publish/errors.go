package publish

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNone       Kind = ""
	NetworkError   Kind = "network_error"
	ProtocolError  Kind = "protocol_error"
	Conflict       Kind = "conflict"
	QuotaExceeded  Kind = "quota_exceeded"
	RemoteRejected Kind = "remote_rejected"
	ConfigError    Kind = "config_error"
	InvalidContent Kind = "invalid_content"
)

// Retryable reports whether re-invoking a publish can reasonably succeed
// without human intervention.
func (k Kind) Retryable() bool {
	return k == Conflict || k == NetworkError
}

// Failure is the typed outcome of an unsuccessful publish.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail builds a Failure of the given kind.
func Fail(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or KindNone for a nil error.
// Errors that are not a *Failure are classified.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return Classify(err)
}

// StatusError is a store response with a non-2xx status code.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

var (
	// ErrMalformedResponse marks a 2xx response whose body could not be
	// interpreted.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrTransport marks a request that never produced a response.
	ErrTransport = errors.New("transport failure")
)

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

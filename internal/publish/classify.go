package publish

import (
	"errors"
	"net/http"
	"slices"
	"strings"
)

// rule matches a store rejection. Empty Statuses matches any status, empty
// Phrases matches any message. Phrases are compared case-insensitively.
type rule struct {
	Kind     Kind
	Statuses []int
	Phrases  []string
}

// rules is evaluated in order; the first match wins. Anything that matches
// no rule is RemoteRejected.
var rules = []rule{
	{Kind: QuotaExceeded, Phrases: []string{"too many files", "file count", "quota", "too large", "exceeds"}},
	{Kind: Conflict, Statuses: []int{http.StatusConflict}},
	{Kind: Conflict, Statuses: []int{http.StatusUnprocessableEntity}, Phrases: []string{"wasn't supplied", "does not match", "but expected"}},
}

func (r rule) match(status int, msg string) bool {
	if len(r.Statuses) > 0 && !slices.Contains(r.Statuses, status) {
		return false
	}
	if len(r.Phrases) == 0 {
		return true
	}
	msg = strings.ToLower(msg)
	for _, p := range r.Phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps a store rejection to a Kind.
func ClassifyStatus(status int, msg string) Kind {
	for _, r := range rules {
		if r.match(status, msg) {
			return r.Kind
		}
	}
	return RemoteRejected
}

// Classify maps an error returned by a Store to a Kind. Errors that carry
// neither a status nor a malformed-response marker mean no usable response
// arrived, so they count as NetworkError.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyStatus(se.StatusCode, se.Message)
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ProtocolError
	}
	return NetworkError
}

// message extracts the human-readable part of a store error.
func message(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return http.StatusText(se.StatusCode)
	}
	return err.Error()
}

func failure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: Classify(err), Message: message(err), Err: err}
}

package synthesis

import (
	"errors"
	"fmt"
)

// Kind classifies a synthesis failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindQuota
	KindSafety
	KindTimeout
	KindEmptyResponse
	KindRefusal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindQuota:
		return "quota_exceeded"
	case KindSafety:
		return "safety_blocked"
	case KindTimeout:
		return "timeout"
	case KindEmptyResponse:
		return "empty_response"
	case KindRefusal:
		return "model_refusal"
	default:
		return "unknown_provider_error"
	}
}

// Error is the only error type the synthesis client returns. Text carries
// the model's own words for a refusal or the offending detail for a
// validation failure.
type Error struct {
	Kind Kind
	Op   string
	Text string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrQuota) works on
// any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Text == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuth          = &Error{Kind: KindAuth}
	ErrQuota         = &Error{Kind: KindQuota}
	ErrSafety        = &Error{Kind: KindSafety}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrEmptyResponse = &Error{Kind: KindEmptyResponse}
	ErrRefusal       = &Error{Kind: KindRefusal}
	ErrUnknown       = &Error{Kind: KindUnknown}
)

// KindOf returns the kind of err, or KindUnknown when err is not a
// synthesis error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Validationf builds a validation error. Other packages use it so that all
// user-input failures share one kind.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Text: fmt.Sprintf(format, args...)}
}

// RefusalText returns the model's text when err is a refusal.
func RefusalText(err error) (string, bool) {
	var se *Error
	if errors.As(err, &se) && se.Kind == KindRefusal {
		return se.Text, true
	}
	return "", false
}

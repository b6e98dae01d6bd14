package synthesis

import (
	"context"
	"errors"
	"strings"
)

type rule struct {
	pattern string
	kind    Kind
}

// Rules are checked in order; the first match wins.
var classifyRules = []rule{
	{"api_key_invalid", KindAuth},
	{"api key not valid", KindAuth},
	{"invalid api key", KindAuth},
	{"permission_denied", KindAuth},
	{"permission denied", KindAuth},
	{"unauthenticated", KindAuth},

	{"quota", KindQuota},
	{"billing", KindQuota},
	{"rate limit", KindQuota},
	{"rate-limit", KindQuota},
	{"resource_exhausted", KindQuota},
	{"too many requests", KindQuota},
	{"429", KindQuota},

	{"safety", KindSafety},
	{"blocked", KindSafety},
	{"prohibited", KindSafety},

	{"deadline", KindTimeout},
	{"timeout", KindTimeout},
	{"timed out", KindTimeout},
}

// Classify maps a raw provider error to a Kind. Errors that already carry a
// kind keep it.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	for _, r := range classifyRules {
		if strings.Contains(msg, r.pattern) {
			return r.kind
		}
	}
	return KindUnknown
}

func wrap(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

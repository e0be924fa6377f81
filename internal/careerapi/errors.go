package careerapi

import "errors"

// ErrNoSession is returned by GetSession when the server reports that no
// interview session has been started for the authenticated user. It is an
// expected condition, not a failure.
var ErrNoSession = errors.New("no active session")

// ErrorKind classifies API failures so callers can pick a recovery strategy.
type ErrorKind string

const (
	// KindTransport covers network failures, non-2xx statuses without a more
	// specific meaning, and malformed response bodies.
	KindTransport ErrorKind = "transport"
	// KindAuth marks a rejected bearer credential. Never retried automatically;
	// the caller must re-authenticate.
	KindAuth ErrorKind = "auth"
	// KindValidation marks a payload the server refused as semantically invalid.
	// Message carries the server's explanation verbatim for display.
	KindValidation ErrorKind = "validation"
)

// APIError describes a failed request against the CareerMate API.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return string(e.Kind) + " error from api"
	}
	return string(e.Kind) + " error from api: " + e.Message
}

// IsAuth reports whether the error is a credential rejection.
func IsAuth(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}

// IsValidation reports whether the server rejected the payload as invalid.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindValidation
}

package main

import (
	"errors"
	"fmt"
)

// Error categories, matched with errors.Is by callers and tests.
var (
	// ErrAPIRequest covers transport failures and non-2xx responses.
	ErrAPIRequest = errors.New("hoyolab api request failed")
	// ErrAPIDecode covers undecodable or non-JSON response bodies.
	ErrAPIDecode = errors.New("could not decode hoyolab response")
	// ErrAPIResponse covers structurally valid JSON missing expected fields.
	ErrAPIResponse = errors.New("unexpected hoyolab response")
	// ErrFeedIO covers unreadable or unwritable feed files. A feed file that
	// does not exist yet is not an error.
	ErrFeedIO = errors.New("feed file io error")
	// ErrFeedFormat covers feed files that exist but cannot be parsed.
	ErrFeedFormat = errors.New("invalid feed file")
	// ErrConfig covers missing or invalid configuration values.
	ErrConfig = errors.New("invalid config")
)

// APIError is returned when the API answered with a non-zero retcode. The
// message is surfaced verbatim and may not be in English.
type APIError struct {
	Retcode int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hoyolab api error (retcode %d): %s", e.Retcode, e.Message)
}

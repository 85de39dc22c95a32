package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// invalidKeySignature is the body text the upstream API returns on a
// 400-status response when the API key is rejected.
const invalidKeySignature = "API key not valid"

// AuthError indicates the upstream API rejected our API key. It is not
// recoverable without operator intervention.
type AuthError struct {
	Op    string
	cause error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: API key rejected by upstream: %v", e.Op, e.cause)
}

func (e *AuthError) Unwrap() error { return e.cause }

// RequestError wraps any other transport or parse failure from the
// upstream API.
type RequestError struct {
	Op    string
	cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: upstream request failed: %v", e.Op, e.cause)
}

func (e *RequestError) Unwrap() error { return e.cause }

// classify turns an upstream call failure into the pipeline's error
// taxonomy: a 400 response carrying the invalid-key signature is an
// authentication failure, everything else a generic request failure.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		if strings.Contains(gerr.Body, invalidKeySignature) || strings.Contains(gerr.Message, invalidKeySignature) {
			return &AuthError{Op: op, cause: err}
		}
	}
	return &RequestError{Op: op, cause: err}
}

// requestErrorf builds a RequestError from a formatted message, for
// failures that do not originate in the transport (e.g. empty lookups).
func requestErrorf(op, format string, args ...interface{}) error {
	return &RequestError{Op: op, cause: fmt.Errorf(format, args...)}
}

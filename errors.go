package session

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeValidation        = "session_validation_failed"
	TextCodeTokenMalformed    = "session_token_malformed"
	TextCodeAuthRejected      = "session_auth_rejected"
	TextCodeTransportFailure  = "session_transport_failure"
	TextCodeStorageFailure    = "session_storage_failure"
	TextCodeRecordNotFound    = "session_record_not_found"
	TextCodeMalformedResponse = "session_malformed_response"
)

// ErrValidation is returned when login/register preconditions fail locally,
// before any network call is made.
var ErrValidation = errors.New("validation failed", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

// ErrTokenMalformed is returned when a token fails the structural decode.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeBadRequest)

// ErrAuthRejected is returned when the authentication service refuses a
// login or registration.
var ErrAuthRejected = errors.New("authentication rejected", errors.CategoryAuth).
	WithTextCode(TextCodeAuthRejected).
	WithCode(errors.CodeUnauthorized)

// ErrTransportFailure is returned when a request never produced an HTTP
// response (connection refused, DNS, timeout).
var ErrTransportFailure = errors.New("unable to connect to server", errors.CategoryOperation).
	WithTextCode(TextCodeTransportFailure)

// ErrStorageFailure marks Store read/write failures. These are recovered
// locally and logged, never surfaced to callers as fatal.
var ErrStorageFailure = errors.New("session storage failure", errors.CategoryOperation).
	WithTextCode(TextCodeStorageFailure)

// ErrRecordNotFound is reported by Store implementations for missing keys.
var ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

// ErrMalformedResponse is returned when a service response is missing
// required fields.
var ErrMalformedResponse = errors.New("malformed service response", errors.CategoryOperation).
	WithTextCode(TextCodeMalformedResponse)

// IsValidationError reports whether err is a local precondition failure.
func IsValidationError(err error) bool {
	return hasTextCode(err, TextCodeValidation)
}

// IsAuthError reports whether err is a rejection from the auth service.
func IsAuthError(err error) bool {
	return hasTextCode(err, TextCodeAuthRejected)
}

// IsTransportError reports whether err is a connectivity failure.
func IsTransportError(err error) bool {
	return hasTextCode(err, TextCodeTransportFailure)
}

// IsRecordNotFound reports whether err marks a missing Store key.
func IsRecordNotFound(err error) bool {
	return hasTextCode(err, TextCodeRecordNotFound)
}

func hasTextCode(err error, code string) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// newHTTPError builds the gateway error for a non-success response. message
// is whatever the response body carried; the status lands in metadata so
// callers can normalize by code.
func newHTTPError(status int, message string) *errors.Error {
	if message == "" {
		message = fmt.Sprintf("HTTP error: %d", status)
	}

	category := errors.CategoryOperation
	switch {
	case status == 401 || status == 403:
		category = errors.CategoryAuth
	case status == 409:
		category = errors.CategoryConflict
	case status >= 400 && status < 500:
		category = errors.CategoryBadInput
	}

	return errors.New(message, category).
		WithTextCode(TextCodeAuthRejected).
		WithMetadata(map[string]any{"status": status})
}

// NormalizeAuthError maps login/register failures to the short, stable
// messages surfaced to users, sniffing the HTTP status when one is present.
func NormalizeAuthError(err error) *errors.Error {
	if err == nil {
		return nil
	}

	var rich *errors.Error
	if !errors.As(err, &rich) {
		return errors.Wrap(err, ErrAuthRejected.Category, ErrAuthRejected.Message).
			WithTextCode(TextCodeAuthRejected)
	}

	if rich.TextCode == TextCodeTransportFailure {
		return errors.New("Unable to connect to server", errors.CategoryOperation).
			WithTextCode(TextCodeTransportFailure)
	}

	status, ok := statusFromError(rich)
	if !ok {
		return rich
	}

	switch {
	case status == 401:
		return errors.New("Invalid username or password", errors.CategoryAuth).
			WithTextCode(TextCodeAuthRejected).
			WithCode(errors.CodeUnauthorized)
	case status == 409:
		return errors.New("Username already exists", errors.CategoryConflict).
			WithTextCode(TextCodeAuthRejected).
			WithCode(errors.CodeConflict)
	case status == 422:
		return errors.New("Invalid input provided", errors.CategoryBadInput).
			WithTextCode(TextCodeAuthRejected).
			WithCode(errors.CodeBadRequest)
	case status >= 500:
		return errors.New("Server error, please try again later", errors.CategoryOperation).
			WithTextCode(TextCodeAuthRejected)
	}

	return rich
}

func statusFromError(err *errors.Error) (int, bool) {
	if err == nil || err.Metadata == nil {
		return 0, false
	}
	status, ok := err.Metadata["status"].(int)
	return status, ok
}

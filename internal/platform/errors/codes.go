package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Store errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeRecordExists      Code = "RECORD_EXISTS"
	CodeIncorrectPassword Code = "INCORRECT_PASSWORD"
	CodeIntegrity         Code = "INTEGRITY_VIOLATION"

	// Input validation errors (HTTP boundary)
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER"
	CodeInvalidPayload    Code = "INVALID_PAYLOAD"
	CodeEmailEmpty        Code = "EMAIL_EMPTY"
)

// HTTPStatus maps domain codes to HTTP status codes for the parity surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - uniqueness or single-active-token invariant violated
	case CodeRecordExists:
		return http.StatusConflict

	// BadRequest - credential mismatch and malformed input
	case CodeIncorrectPassword,
		CodeInvalidIdentifier,
		CodeInvalidPayload,
		CodeEmailEmpty:
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

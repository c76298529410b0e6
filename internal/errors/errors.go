// Package errors defines the gateway's closed error taxonomy and its
// HTTP/XML mapping.
package errors

import "fmt"

// GatewayError is a machine-readable failure kind with a human-readable
// message and the HTTP status it maps to.
type GatewayError struct {
	// Code is the S3-style error code (e.g. "NoSuchKey", "AccessDenied").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return.
	HTTPStatus int
}

// Error implements the error interface for GatewayError.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// WithDetail returns a copy of the error with Message replaced by detail.
// Used for the InvalidRequest(detail) and InternalError(detail) variants.
func (e *GatewayError) WithDetail(detail string) *GatewayError {
	cp := *e
	cp.Message = detail
	return &cp
}

// The closed set of error kinds the gateway can return. Every error that
// crosses the HTTP boundary is one of these.
var (
	// ErrNoSuchKey is returned when an object is absent on an authoritative backend.
	ErrNoSuchKey = &GatewayError{
		Code:       "NoSuchKey",
		Message:    "The specified key does not exist",
		HTTPStatus: 404,
	}

	// ErrNoSuchBucket is returned when the bucket is absent or the path is unrecognized.
	ErrNoSuchBucket = &GatewayError{
		Code:       "NoSuchBucket",
		Message:    "The specified bucket does not exist",
		HTTPStatus: 404,
	}

	// ErrInvalidRequest is returned for header, signature-format, or timestamp problems.
	ErrInvalidRequest = &GatewayError{
		Code:       "InvalidRequest",
		Message:    "Invalid Request",
		HTTPStatus: 400,
	}

	// ErrAccessDenied is returned for an unrecognized credential.
	ErrAccessDenied = &GatewayError{
		Code:       "AccessDenied",
		Message:    "Access Denied",
		HTTPStatus: 403,
	}

	// ErrSignatureDoesNotMatch is returned when the recomputed signature disagrees with the client's.
	ErrSignatureDoesNotMatch = &GatewayError{
		Code:       "SignatureDoesNotMatch",
		Message:    "The request signature we calculated does not match the signature you provided",
		HTTPStatus: 403,
	}

	// ErrInternalError is returned for transient backend failure, consistency
	// violation, or serialization failure.
	ErrInternalError = &GatewayError{
		Code:       "InternalError",
		Message:    "We encountered an internal error. Please try again.",
		HTTPStatus: 500,
	}
)

// IsNoSuch reports whether err is ErrNoSuchKey or ErrNoSuchBucket, the two
// kinds the replication engine treats as authoritative "not found" results.
func IsNoSuch(err error) bool {
	ge, ok := err.(*GatewayError)
	if !ok {
		return false
	}
	return ge.Code == ErrNoSuchKey.Code || ge.Code == ErrNoSuchBucket.Code
}

// Is reports whether err is a *GatewayError of the same kind as sentinel.
// WithDetail returns a distinct pointer with the same Code, so callers
// compare by Code rather than by identity.
func Is(err error, sentinel *GatewayError) bool {
	ge, ok := err.(*GatewayError)
	if !ok {
		return false
	}
	return ge.Code == sentinel.Code
}

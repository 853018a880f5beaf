// Package apierr is the closed error-kind enumeration every handler in this
// service returns instead of ad hoc error strings. The HTTP adapter is the
// only place that renders a human message or chooses a status code;
// everything upstream works with typed Kind values and machine tags.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Kind is a closed set of error categories. Cryptographic failures map to
// KindUnauthorized except when caused by configuration, which is masked as
// KindInternal so a broken deployment never looks like a user's fault.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindGone
	KindRateLimited
	KindConflict
	KindInternal
)

// HTTPStatus maps a Kind to its wire status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden, KindConflict:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Machine tags used in the wire error shape. Handlers should prefer one of
// these over inventing new strings, so downstream clients can pattern-match
// reliably.
const (
	TagOTPRequired          = "OTP_REQUIRED"
	TagInvalidOTP           = "INVALID_OTP"
	TagSecretDeleted        = "SECRET_DELETED"
	TagTokenExpired         = "TOKEN_EXPIRED"
	TagDualExpiry           = "DUAL_EXPIRY"
	TagForbidden            = "FORBIDDEN"
	TagConflictingAuth      = "CONFLICTING_AUTH_METHODS"
	TagAmbiguousPayloadAuth = "AMBIGUOUS_PAYLOAD_AUTH"
	TagLinkNotFound         = "LINK_NOT_FOUND"
	TagInvalidChecksum      = "INVALID_CHECKSUM"
	TagExpired              = "EXPIRED"
	TagMissingAuth          = "MISSING_AUTH"
	TagNotFound             = "NOT_FOUND"
	TagBadRequest           = "BAD_REQUEST"
	TagInternal             = "INTERNAL_ERROR"
	TagRateLimited          = "RATE_LIMITED"
)

// Error is the typed result every component returns instead of a bare
// error. Cause is never rendered to the client; it exists for server-side
// logging only.
type Error struct {
	Kind    Kind
	Tag     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Tag + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Tag + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(kind Kind, tag, message string) *Error {
	return &Error{Kind: kind, Tag: tag, Message: message}
}

// Wrap builds an Error carrying cause for server-side logging.
func Wrap(kind Kind, tag, message string, cause error) *Error {
	return &Error{Kind: kind, Tag: tag, Message: message, Cause: cause}
}

// wireError is the `{ "error": ..., "message": ... }` body every failed
// request gets, regardless of Kind.
type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteHTTP renders err as the wire error shape with the matching status
// code. Non-*Error values are masked as an opaque internal error so raw
// cryptographic or driver error strings never reach the client.
func WriteHTTP(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = New(KindInternal, TagInternal, "internal server error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(wireError{
		Error:   apiErr.Tag,
		Message: apiErr.Message,
	})
}

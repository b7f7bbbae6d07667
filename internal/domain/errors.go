package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrMailDelivery is returned when the mail transport rejects an OTP or link message.
	ErrMailDelivery = errors.New("failed to send OTP")
)

// ValidationError reports malformed input caught before any backend call.
// Message carries the first failing rule only.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

// AuthReason classifies a rejection from the identity backend.
type AuthReason string

const (
	ReasonUnverified         AuthReason = "unverified"
	ReasonInvalidCredentials AuthReason = "invalid-credentials"
	ReasonUnknown            AuthReason = "unknown"
)

// AuthError is the tagged error variant returned by the identity backend.
type AuthError struct {
	Reason  AuthReason
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error {
	if e.Reason == ReasonUnknown {
		return nil
	}
	return ErrUnauthorized
}

// AsAuthError reports whether err carries an *AuthError and returns it.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

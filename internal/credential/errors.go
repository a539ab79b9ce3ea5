package credential

import "errors"

var (
	// ErrInvalidCredentials covers bad email/secret pairs. Surfaced to the
	// caller as a message, never retried automatically.
	ErrInvalidCredentials = errors.New("invalid email or secret")

	// ErrSessionExpired is returned when the access or refresh credential is
	// no longer valid.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotSignedIn is returned by operations that need a current session.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrEmailTaken is returned by Register on an email collision.
	ErrEmailTaken = errors.New("email already registered")
)

package profile

import "errors"

var (
	// ErrNotFound means no profile row exists for the account id in either
	// table. Expected and recoverable: it triggers bootstrap for team
	// accounts and remains terminal for clients until an invitation.
	ErrNotFound = errors.New("profile not found")

	// ErrConflict is a uniqueness violation on profile creation. Treated as
	// success-by-another-writer and recovered by re-reading.
	ErrConflict = errors.New("profile already exists")

	// ErrVariantConflict is returned when a write would leave the account id
	// present in both profile tables. Dual presence is rejected at write
	// time; there is no reconciliation path.
	ErrVariantConflict = errors.New("account already has a profile of the other kind")

	// ErrInternal covers unexpected store failures.
	ErrInternal = errors.New("profile store internal error")
)

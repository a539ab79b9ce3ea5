// Package credential defines the credential session store: the component
// that issues, refreshes, and revokes opaque bearer credentials and exposes
// raw account identity. The rest of the application consumes it only through
// the Store interface; LocalStore is the built-in implementation backed by
// the account directory.
package credential

import (
	"context"
	"time"
)

// Account is the raw identity owned by the store. Immutable once issued;
// the core treats it as read-only input.
type Account struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Metadata keys carried on an account.
const (
	MetaDisplayName = "display_name"
	MetaAvatarURL   = "avatar_url"
	MetaProvider    = "provider"
)

// Session is an access credential, its refresh credential, and the account it
// was issued to. Replaced wholesale on refresh, destroyed on sign-out.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Account      Account   `json:"account"`
}

// Event is an auth state change emitted by the store.
type Event string

const (
	EventSignedIn       Event = "signed_in"
	EventSignedOut      Event = "signed_out"
	EventTokenRefreshed Event = "token_refreshed"
)

// Change pairs an event with the session it produced (nil for signed_out).
type Change struct {
	Event   Event
	Session *Session
}

// Store issues and refreshes bearer credentials for one client runtime and
// emits session-changed events. Implementations hold the current session;
// profile resolution and authorization live elsewhere.
type Store interface {
	// GetSession returns the current session, or nil if signed out.
	GetSession(ctx context.Context) (*Session, error)

	// SignInWithPassword authenticates and installs a new session.
	SignInWithPassword(ctx context.Context, email, secret string) (*Session, error)

	// SignUp registers a new account and installs a session for it.
	SignUp(ctx context.Context, email, secret string, attributes map[string]string) (*Session, error)

	// SignOut destroys the current session. Idempotent.
	SignOut(ctx context.Context) error

	// RefreshSession exchanges the refresh credential for a new session.
	RefreshSession(ctx context.Context) (*Session, error)

	// ResetPasswordForEmail starts a password reset flow.
	ResetPasswordForEmail(ctx context.Context, email, redirectTarget string) error

	// OnAuthStateChange registers a handler for session-changed events and
	// returns an unsubscribe function.
	OnAuthStateChange(handler func(Change)) (unsubscribe func())
}

// Directory is the shared account backend LocalStore authenticates against.
// Implemented by the account service over the profile store's database.
type Directory interface {
	// Authenticate verifies email/secret. Returns ErrInvalidCredentials for
	// unknown emails and wrong secrets alike.
	Authenticate(ctx context.Context, email, secret string) (Account, error)

	// Register creates a new account. Returns ErrEmailTaken on collision.
	Register(ctx context.Context, email, secret string, attributes map[string]string) (Account, error)

	// Lookup fetches an account by id.
	Lookup(ctx context.Context, accountID string) (Account, error)

	// StartPasswordReset issues a reset credential for the email, if known.
	StartPasswordReset(ctx context.Context, email, redirectTarget string) error
}

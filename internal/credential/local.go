package credential

import (
	"context"
	"sort"
	"sync"

	"github.com/fernhill/clienthub/internal/log"
)

// LocalStore implements Store for one client runtime. It holds the current
// session, delegates identity checks to the shared Directory, and emits
// auth-state events to subscribers on its own operations. One LocalStore per
// device; the Directory and TokenIssuer behind it are shared.
type LocalStore struct {
	dir    Directory
	tokens *TokenIssuer

	mu       sync.Mutex
	session  *Session
	handlers map[int]func(Change)
	nextID   int
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore builds a signed-out store over the shared directory.
func NewLocalStore(dir Directory, tokens *TokenIssuer) *LocalStore {
	return &LocalStore{
		dir:      dir,
		tokens:   tokens,
		handlers: make(map[int]func(Change)),
	}
}

// GetSession returns the current session, or nil if signed out.
func (s *LocalStore) GetSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session, nil
}

// SignInWithPassword authenticates against the directory and installs a new
// session, emitting signed_in.
func (s *LocalStore) SignInWithPassword(ctx context.Context, email, secret string) (*Session, error) {
	acct, err := s.dir.Authenticate(ctx, email, secret)
	if err != nil {
		return nil, err
	}

	session, err := s.install(acct)
	if err != nil {
		return nil, err
	}

	s.emit(Change{Event: EventSignedIn, Session: session})

	return session, nil
}

// SignUp registers a new account and installs a session for it, emitting
// signed_in.
func (s *LocalStore) SignUp(ctx context.Context, email, secret string, attributes map[string]string) (*Session, error) {
	acct, err := s.dir.Register(ctx, email, secret, attributes)
	if err != nil {
		return nil, err
	}

	session, err := s.install(acct)
	if err != nil {
		return nil, err
	}

	s.emit(Change{Event: EventSignedIn, Session: session})

	return session, nil
}

// SignOut destroys the current session and emits signed_out. Idempotent: a
// second call is a no-op and emits nothing.
func (s *LocalStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.mu.Unlock()

	if had {
		s.emit(Change{Event: EventSignedOut})
	}

	return nil
}

// RefreshSession exchanges the refresh credential for a fresh session and
// emits token_refreshed. The session is replaced wholesale.
func (s *LocalStore) RefreshSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	current := s.session
	s.mu.Unlock()

	if current == nil {
		return nil, ErrNotSignedIn
	}

	accountID, err := s.tokens.VerifyRefresh(current.RefreshToken)
	if err != nil {
		return nil, err
	}

	acct, err := s.dir.Lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}

	session, err := s.install(acct)
	if err != nil {
		return nil, err
	}

	s.emit(Change{Event: EventTokenRefreshed, Session: session})

	return session, nil
}

// ResetPasswordForEmail starts a password reset flow for the email.
func (s *LocalStore) ResetPasswordForEmail(ctx context.Context, email, redirectTarget string) error {
	return s.dir.StartPasswordReset(ctx, email, redirectTarget)
}

// OnAuthStateChange registers a handler for session-changed events. The
// returned function unsubscribes it.
func (s *LocalStore) OnAuthStateChange(handler func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// install mints tokens for the account and swaps in the new session.
func (s *LocalStore) install(acct Account) (*Session, error) {
	access, refresh, expiresAt, err := s.tokens.Issue(acct)
	if err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Account:      acct,
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	return session, nil
}

// emit delivers the change to every subscriber. Handlers run synchronously in
// registration order; subscribers needing decoupling bridge to a channel.
func (s *LocalStore) emit(change Change) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	handlers := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.Unlock()

	log.Debug(context.Background(), "credential: auth state change",
		log.String("event", string(change.Event)),
	)

	for _, h := range handlers {
		h(change)
	}
}

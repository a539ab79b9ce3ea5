// Package session owns the per-device principal session state machine. A
// Manager subscribes to its credential store's auth-state events and is the
// only writer of its snapshot; readers get immutable copies. Stale async
// resolutions are discarded by epoch so the last event always wins.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/metrics"
	"github.com/fernhill/clienthub/internal/profile"
)

// Status is the observable state of a device's session.
type Status int

const (
	// StatusLoading means the session is known but the principal is still
	// being resolved, or the manager has not finished its initial read.
	StatusLoading Status = iota
	// StatusSignedOut means no session exists.
	StatusSignedOut
	// StatusActive means a session exists and the principal resolved.
	StatusActive
	// StatusUnresolved means a session exists but no profile row backs it.
	// Terminal for client accounts until an invitation creates one.
	StatusUnresolved
)

// String returns string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSignedOut:
		return "signed_out"
	case StatusActive:
		return "active"
	case StatusUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the session state. Principal is non-nil
// only for StatusActive.
type Snapshot struct {
	Status    Status
	Session   *credential.Session
	Principal *identity.Principal
}

// SignedIn reports whether a session exists in this snapshot.
func (s Snapshot) SignedIn() bool {
	return s.Session != nil
}

// Resolver is the slice of the profile resolver the manager consumes.
type Resolver interface {
	Resolve(ctx context.Context, accountID string) (*identity.Principal, error)
	ResolveWithBootstrap(ctx context.Context, acct credential.Account) (*identity.Principal, error)
	Invalidate(ctx context.Context, accountID string)
}

// Profiles bundles the writable profile stores the manager patches through.
type Profiles struct {
	Teams   profile.TeamStore
	Clients profile.ClientStore
}

// ErrNoProfile is returned by UpdateProfile when the session has no resolved
// principal to patch.
var ErrNoProfile = errors.New("session has no resolved profile")

// Manager drives one device's session snapshot from credential store events.
// All snapshot writes happen under mu and are stamped with an epoch; an async
// resolution that finishes after a newer event is thrown away.
type Manager struct {
	store    credential.Store
	resolver Resolver
	profiles Profiles

	mu    sync.Mutex
	snap  Snapshot
	epoch uint64
	unsub func()
}

// NewManager builds a manager in the loading state. Call Start to subscribe
// and perform the initial session read.
func NewManager(store credential.Store, resolver Resolver, profiles Profiles) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		profiles: profiles,
		snap:     Snapshot{Status: StatusLoading},
	}
}

// Start subscribes to the store and loads the persisted session, if any. The
// subscription is taken before the initial read so no event is missed; epoch
// ordering makes the overlap harmless.
func (m *Manager) Start(ctx context.Context) error {
	m.unsub = m.store.OnAuthStateChange(m.handleChange)

	session, err := m.store.GetSession(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.epoch++
	epoch := m.epoch

	if session == nil {
		m.snap = Snapshot{Status: StatusSignedOut}
		m.mu.Unlock()

		return nil
	}

	m.snap = Snapshot{Status: StatusLoading, Session: session}
	m.mu.Unlock()

	go m.resolveInto(epoch, session.Account)

	return nil
}

// Stop unsubscribes from the store. The snapshot keeps its last value.
func (m *Manager) Stop() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Snapshot returns the current state. The returned value is a copy; the
// pointed-to session and principal are never mutated after publication.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snap
}

// SignIn authenticates through the store. The principal resolution is driven
// by the resulting signed_in event and lands asynchronously; callers observe
// it through Snapshot.
func (m *Manager) SignIn(ctx context.Context, email, secret string) error {
	if _, err := m.store.SignInWithPassword(ctx, email, secret); err != nil {
		return err
	}

	metrics.SignIns.Add(ctx, 1)

	return nil
}

// SignUp registers through the store and resolves the principal inline with
// bootstrap, so a brand-new account leaves this call with a profile row and an
// Active snapshot instead of waiting out the event-driven path.
func (m *Manager) SignUp(ctx context.Context, email, secret string, attributes map[string]string) error {
	session, err := m.store.SignUp(ctx, email, secret, attributes)
	if err != nil {
		return err
	}

	// Supersede the resolution spawned by the signed_in event; bootstrap
	// below is authoritative for this account's first principal.
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.snap = Snapshot{Status: StatusLoading, Session: session}
	m.mu.Unlock()

	p, err := m.resolver.ResolveWithBootstrap(ctx, session.Account)

	m.apply(epoch, session, p, err)

	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return err
	}

	metrics.SignIns.Add(ctx, 1)

	return nil
}

// SignOut clears the snapshot synchronously before asking the store, so no
// reader ever sees a signed-in snapshot after this call returns, even if the
// store confirmation is slow or fails.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.snap = Snapshot{Status: StatusSignedOut}
	m.mu.Unlock()

	if err := m.store.SignOut(ctx); err != nil {
		log.Warn(ctx, "session: store sign-out failed after local clear", log.Cause(err))

		return err
	}

	metrics.SignOuts.Add(ctx, 1)

	return nil
}

// Refresh exchanges the refresh credential through the store and forces a
// re-resolution of the principal. The cache entry is dropped first so the
// resolution spawned by the token_refreshed event reads current rows.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	session := m.snap.Session
	m.mu.Unlock()

	if session != nil {
		m.resolver.Invalidate(ctx, session.Account.ID)
	}

	_, err := m.store.RefreshSession(ctx)

	return err
}

// ResetPassword starts a password reset flow through the store.
func (m *Manager) ResetPassword(ctx context.Context, email, redirectTarget string) error {
	return m.store.ResetPasswordForEmail(ctx, email, redirectTarget)
}

// UpdateProfile patches the signed-in account's own profile, then re-reads it
// from storage so the snapshot reflects what was actually persisted rather
// than an optimistic merge.
func (m *Manager) UpdateProfile(ctx context.Context, patch profile.Patch) error {
	m.mu.Lock()
	epoch := m.epoch
	snap := m.snap
	m.mu.Unlock()

	if snap.Principal == nil {
		return ErrNoProfile
	}

	accountID := snap.Principal.ID()

	var err error

	switch {
	case snap.Principal.IsTeam():
		err = m.profiles.Teams.UpdateTeamProfile(ctx, accountID, patch)
	case snap.Principal.IsClient():
		err = m.profiles.Clients.UpdateClientProfile(ctx, accountID, patch)
	default:
		return ErrNoProfile
	}

	if err != nil {
		return err
	}

	m.resolver.Invalidate(ctx, accountID)

	p, err := m.resolver.Resolve(ctx, accountID)

	m.apply(epoch, snap.Session, p, err)

	return err
}

// handleChange is the store event entrypoint. It bumps the epoch so any
// in-flight resolution from a previous event is discarded on arrival.
func (m *Manager) handleChange(change credential.Change) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch

	switch change.Event {
	case credential.EventSignedOut:
		m.snap = Snapshot{Status: StatusSignedOut}
		m.mu.Unlock()

		return

	case credential.EventTokenRefreshed:
		// Same account, new credentials. The current principal stays visible
		// while a fresh resolution runs, so role changes made since the last
		// resolution surface on refresh.
		m.snap.Session = change.Session
		m.mu.Unlock()

		go m.resolveInto(epoch, change.Session.Account)

		return

	case credential.EventSignedIn:
		m.snap = Snapshot{Status: StatusLoading, Session: change.Session}
		m.mu.Unlock()

		go m.resolveInto(epoch, change.Session.Account)

		return

	default:
		m.mu.Unlock()

		log.Warn(context.Background(), "session: unknown auth event",
			log.String("event", string(change.Event)),
		)
	}
}

// resolveInto resolves the account's principal and applies it if no newer
// event has superseded epoch in the meantime.
func (m *Manager) resolveInto(epoch uint64, acct credential.Account) {
	ctx := context.Background()

	p, err := m.resolver.Resolve(ctx, acct.ID)

	m.apply(epoch, nil, p, err)
}

// apply installs a resolution outcome stamped with epoch. A nil session keeps
// the snapshot's current one. Stale epochs are dropped without effect.
func (m *Manager) apply(epoch uint64, session *credential.Session, p *identity.Principal, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		log.Debug(context.Background(), "session: discarding stale resolution",
			log.Uint64("epoch", epoch),
			log.Uint64("current", m.epoch),
		)

		return
	}

	if session == nil {
		session = m.snap.Session
	}

	if session == nil {
		// Signed out while resolving and the epoch somehow survived; nothing
		// to attach a principal to.
		m.snap = Snapshot{Status: StatusSignedOut}

		return
	}

	switch {
	case err == nil && p != nil:
		m.snap = Snapshot{Status: StatusActive, Session: session, Principal: p}
	case errors.Is(err, profile.ErrNotFound):
		m.snap = Snapshot{Status: StatusUnresolved, Session: session}
	default:
		log.Warn(context.Background(), "session: principal resolution failed",
			log.String("account_id", session.Account.ID),
			log.Cause(err),
		)

		m.snap = Snapshot{Status: StatusUnresolved, Session: session}
	}
}

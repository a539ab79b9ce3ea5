package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/profile"
)

type fakeAccount struct {
	id     string
	secret string
	meta   map[string]string
}

type fakeDirectory struct {
	mu      sync.Mutex
	byEmail map[string]fakeAccount
	nextID  int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byEmail: make(map[string]fakeAccount)}
}

func (d *fakeDirectory) add(email, secret string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := fmt.Sprintf("acct-%d", d.nextID)
	d.byEmail[strings.ToLower(email)] = fakeAccount{id: id, secret: secret}

	return id
}

func (d *fakeDirectory) Authenticate(ctx context.Context, email, secret string) (credential.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.byEmail[strings.ToLower(email)]
	if !ok || acct.secret != secret {
		return credential.Account{}, credential.ErrInvalidCredentials
	}

	return credential.Account{ID: acct.id, Email: strings.ToLower(email), Metadata: acct.meta}, nil
}

func (d *fakeDirectory) Register(ctx context.Context, email, secret string, attributes map[string]string) (credential.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := d.byEmail[key]; ok {
		return credential.Account{}, credential.ErrEmailTaken
	}

	d.nextID++
	id := fmt.Sprintf("acct-%d", d.nextID)
	d.byEmail[key] = fakeAccount{id: id, secret: secret, meta: attributes}

	return credential.Account{ID: id, Email: key, Metadata: attributes}, nil
}

func (d *fakeDirectory) Lookup(ctx context.Context, accountID string) (credential.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for email, acct := range d.byEmail {
		if acct.id == accountID {
			return credential.Account{ID: acct.id, Email: email, Metadata: acct.meta}, nil
		}
	}

	return credential.Account{}, credential.ErrSessionExpired
}

func (d *fakeDirectory) StartPasswordReset(ctx context.Context, email, redirectTarget string) error {
	return nil
}

type fakeTeamStore struct {
	mu       sync.Mutex
	profiles map[string]*identity.TeamProfile
}

func newFakeTeamStore() *fakeTeamStore {
	return &fakeTeamStore{profiles: make(map[string]*identity.TeamProfile)}
}

func (s *fakeTeamStore) GetTeamProfile(ctx context.Context, accountID string) (*identity.TeamProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return nil, profile.ErrNotFound
	}

	copied := *p

	return &copied, nil
}

func (s *fakeTeamStore) CreateTeamProfile(ctx context.Context, p *identity.TeamProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return profile.ErrConflict
	}

	copied := *p
	s.profiles[p.ID] = &copied

	return nil
}

func (s *fakeTeamStore) UpdateTeamProfile(ctx context.Context, accountID string, patch profile.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return profile.ErrNotFound
	}

	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}

	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}

	return nil
}

func (s *fakeTeamStore) UpdateTeamRole(ctx context.Context, accountID string, role identity.TeamRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return profile.ErrNotFound
	}

	p.Role = role

	return nil
}

type fakeClientStore struct{}

func (s *fakeClientStore) GetClientProfile(ctx context.Context, accountID string) (*identity.ClientProfile, error) {
	return nil, profile.ErrNotFound
}

func (s *fakeClientStore) CreateClientProfile(ctx context.Context, p *identity.ClientProfile) error {
	return profile.ErrConflict
}

func (s *fakeClientStore) UpdateClientProfile(ctx context.Context, accountID string, patch profile.Patch) error {
	return profile.ErrNotFound
}

// storeResolver resolves straight from the fake team store. A non-nil gate
// blocks Resolve until closed, to stage slow resolutions.
type storeResolver struct {
	teams *fakeTeamStore
	gate  chan struct{}
}

func (r *storeResolver) Resolve(ctx context.Context, accountID string) (*identity.Principal, error) {
	if r.gate != nil {
		<-r.gate
	}

	p, err := r.teams.GetTeamProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return identity.NewTeamPrincipal(p), nil
}

func (r *storeResolver) ResolveWithBootstrap(ctx context.Context, acct credential.Account) (*identity.Principal, error) {
	p, err := r.Resolve(ctx, acct.ID)
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, profile.ErrNotFound) {
		return nil, err
	}

	seed := &identity.TeamProfile{
		ID:    acct.ID,
		Email: acct.Email,
		Role:  identity.TeamRoleUser,
	}
	if err := r.teams.CreateTeamProfile(ctx, seed); err != nil && !errors.Is(err, profile.ErrConflict) {
		return nil, err
	}

	return r.Resolve(ctx, acct.ID)
}

func (r *storeResolver) Invalidate(ctx context.Context, accountID string) {}

type fixture struct {
	dir      *fakeDirectory
	teams    *fakeTeamStore
	resolver *storeResolver
	store    *credential.LocalStore
	mgr      *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := credential.NewTokenIssuer(credential.Config{SecretKey: "test-secret"})
	require.NoError(t, err)

	dir := newFakeDirectory()
	teams := newFakeTeamStore()
	resolver := &storeResolver{teams: teams}
	store := credential.NewLocalStore(dir, tokens)
	mgr := NewManager(store, resolver, Profiles{Teams: teams, Clients: &fakeClientStore{}})

	t.Cleanup(mgr.Stop)

	return &fixture{dir: dir, teams: teams, resolver: resolver, store: store, mgr: mgr}
}

func (f *fixture) seedStaff(t *testing.T, email, secret string, role identity.TeamRole) string {
	t.Helper()

	id := f.dir.add(email, secret)
	require.NoError(t, f.teams.CreateTeamProfile(context.Background(), &identity.TeamProfile{
		ID:    id,
		Email: email,
		Role:  role,
	}))

	return id
}

func waitForStatus(t *testing.T, mgr *Manager, want Status) Snapshot {
	t.Helper()

	require.Eventually(t, func() bool {
		return mgr.Snapshot().Status == want
	}, 2*time.Second, 10*time.Millisecond, "waiting for status %s", want)

	return mgr.Snapshot()
}

func TestManagerStartSignedOut(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, StatusLoading, f.mgr.Snapshot().Status)

	require.NoError(t, f.mgr.Start(context.Background()))
	assert.Equal(t, StatusSignedOut, f.mgr.Snapshot().Status)
	assert.False(t, f.mgr.Snapshot().SignedIn())
}

func TestManagerStartWithPersistedSession(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleModerator)

	_, err := f.store.SignInWithPassword(context.Background(), "staff@fernhill.test", "hunter22")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Start(context.Background()))

	snap := waitForStatus(t, f.mgr, StatusActive)
	require.NotNil(t, snap.Principal)
	assert.Equal(t, identity.TeamRoleModerator, snap.Principal.Team.Role)
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	id := f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleAdmin)
	require.NoError(t, f.mgr.Start(context.Background()))

	t.Run("wrong password leaves snapshot signed out", func(t *testing.T) {
		err := f.mgr.SignIn(context.Background(), "staff@fernhill.test", "wrong")
		require.ErrorIs(t, err, credential.ErrInvalidCredentials)
		assert.Equal(t, StatusSignedOut, f.mgr.Snapshot().Status)
	})

	t.Run("success resolves the principal", func(t *testing.T) {
		require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))

		snap := waitForStatus(t, f.mgr, StatusActive)
		require.NotNil(t, snap.Principal)
		assert.Equal(t, id, snap.Principal.ID())
		assert.True(t, snap.SignedIn())
	})
}

func TestSignInWithoutProfileIsUnresolved(t *testing.T) {
	f := newFixture(t)
	f.dir.add("orphan@fernhill.test", "hunter22")
	require.NoError(t, f.mgr.Start(context.Background()))

	require.NoError(t, f.mgr.SignIn(context.Background(), "orphan@fernhill.test", "hunter22"))

	snap := waitForStatus(t, f.mgr, StatusUnresolved)
	assert.True(t, snap.SignedIn())
	assert.Nil(t, snap.Principal)
}

func TestSignOutClearsSynchronously(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleAdmin)
	require.NoError(t, f.mgr.Start(context.Background()))
	require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))
	waitForStatus(t, f.mgr, StatusActive)

	require.NoError(t, f.mgr.SignOut(context.Background()))

	// No waiting: the snapshot must already be cleared when SignOut returns.
	snap := f.mgr.Snapshot()
	assert.Equal(t, StatusSignedOut, snap.Status)
	assert.Nil(t, snap.Session)
	assert.Nil(t, snap.Principal)
}

func TestStaleResolutionDiscarded(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleAdmin)
	require.NoError(t, f.mgr.Start(context.Background()))

	gate := make(chan struct{})
	f.resolver.gate = gate

	require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))
	assert.Equal(t, StatusLoading, f.mgr.Snapshot().Status)

	require.NoError(t, f.mgr.SignOut(context.Background()))
	close(gate)

	// The resolution from the superseded sign-in must never surface.
	require.Never(t, func() bool {
		return f.mgr.Snapshot().Status != StatusSignedOut
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestSignUpBootstrapsInline(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.Start(context.Background()))

	err := f.mgr.SignUp(context.Background(), "new@fernhill.test", "hunter22", map[string]string{
		credential.MetaDisplayName: "New Hire",
	})
	require.NoError(t, err)

	// Inline bootstrap: the snapshot is already active when SignUp returns.
	snap := f.mgr.Snapshot()
	require.Equal(t, StatusActive, snap.Status)
	require.NotNil(t, snap.Principal)
	assert.True(t, snap.Principal.IsTeam())
	assert.Equal(t, identity.TeamRoleUser, snap.Principal.Team.Role)

	stored, err := f.teams.GetTeamProfile(context.Background(), snap.Principal.ID())
	require.NoError(t, err)
	assert.Equal(t, identity.TeamRoleUser, stored.Role)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.dir.add("taken@fernhill.test", "hunter22")
	require.NoError(t, f.mgr.Start(context.Background()))

	err := f.mgr.SignUp(context.Background(), "taken@fernhill.test", "hunter22", nil)
	require.ErrorIs(t, err, credential.ErrEmailTaken)
	assert.Equal(t, StatusSignedOut, f.mgr.Snapshot().Status)
}

func TestRefreshReresolvesPrincipal(t *testing.T) {
	f := newFixture(t)
	id := f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleTeamMember)
	require.NoError(t, f.mgr.Start(context.Background()))
	require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))
	before := waitForStatus(t, f.mgr, StatusActive)
	require.Equal(t, identity.TeamRoleTeamMember, before.Principal.Team.Role)

	// A role granted after sign-in must surface on the next refresh.
	require.NoError(t, f.teams.UpdateTeamRole(context.Background(), id, identity.TeamRoleAdmin))
	require.NoError(t, f.mgr.Refresh(context.Background()))

	require.Eventually(t, func() bool {
		snap := f.mgr.Snapshot()

		return snap.Status == StatusActive && snap.Principal != nil &&
			snap.Principal.Team.Role == identity.TeamRoleAdmin
	}, 2*time.Second, 10*time.Millisecond, "refreshed snapshot never picked up the new role")

	snap := f.mgr.Snapshot()
	require.NotNil(t, snap.Session)
	assert.Equal(t, before.Principal.ID(), snap.Principal.ID())
}

func TestRefreshDuringResolutionStillResolves(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleAdmin)
	require.NoError(t, f.mgr.Start(context.Background()))

	gate := make(chan struct{})
	f.resolver.gate = gate

	require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))
	assert.Equal(t, StatusLoading, f.mgr.Snapshot().Status)

	// The refresh supersedes the gated sign-in resolution. Its own resolution
	// must still land once the gate opens, instead of leaving the snapshot
	// loading forever.
	require.NoError(t, f.mgr.Refresh(context.Background()))
	close(gate)

	snap := waitForStatus(t, f.mgr, StatusActive)
	require.NotNil(t, snap.Principal)
	assert.True(t, snap.SignedIn())
}

func TestRefreshWhileSignedOut(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.Start(context.Background()))

	err := f.mgr.Refresh(context.Background())
	require.ErrorIs(t, err, credential.ErrNotSignedIn)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.seedStaff(t, "staff@fernhill.test", "hunter22", identity.TeamRoleAdmin)
	require.NoError(t, f.mgr.Start(context.Background()))

	t.Run("without a resolved principal", func(t *testing.T) {
		name := "Nobody"
		err := f.mgr.UpdateProfile(context.Background(), profile.Patch{DisplayName: &name})
		require.ErrorIs(t, err, ErrNoProfile)
	})

	require.NoError(t, f.mgr.SignIn(context.Background(), "staff@fernhill.test", "hunter22"))
	waitForStatus(t, f.mgr, StatusActive)

	t.Run("snapshot reflects the persisted row", func(t *testing.T) {
		name := "Renamed Staffer"
		require.NoError(t, f.mgr.UpdateProfile(context.Background(), profile.Patch{DisplayName: &name}))

		snap := f.mgr.Snapshot()
		require.Equal(t, StatusActive, snap.Status)
		assert.Equal(t, "Renamed Staffer", snap.Principal.DisplayName())
	})
}

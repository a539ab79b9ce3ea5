package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/pkg/xcache"
)

var errBackend = errors.New("backend unavailable")

type stubTeams struct {
	mu        sync.Mutex
	profiles  map[string]*identity.TeamProfile
	getErrs   []error
	createErr error
	onCreate  func()
	gets      int
	creates   int
}

func newStubTeams() *stubTeams {
	return &stubTeams{profiles: make(map[string]*identity.TeamProfile)}
}

func (s *stubTeams) GetTeamProfile(ctx context.Context, accountID string) (*identity.TeamProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++

	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]

		return nil, err
	}

	p, ok := s.profiles[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	return p, nil
}

func (s *stubTeams) CreateTeamProfile(ctx context.Context, p *identity.TeamProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++

	if s.onCreate != nil {
		s.onCreate()
	}

	if s.createErr != nil {
		return s.createErr
	}

	if _, ok := s.profiles[p.ID]; ok {
		return ErrConflict
	}

	s.profiles[p.ID] = p

	return nil
}

func (s *stubTeams) UpdateTeamProfile(ctx context.Context, accountID string, patch Patch) error {
	return ErrNotFound
}

func (s *stubTeams) UpdateTeamRole(ctx context.Context, accountID string, role identity.TeamRole) error {
	return ErrNotFound
}

func (s *stubTeams) seed(p *identity.TeamProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.ID] = p
}

type stubClients struct {
	mu       sync.Mutex
	profiles map[string]*identity.ClientProfile
	gets     int
}

func newStubClients() *stubClients {
	return &stubClients{profiles: make(map[string]*identity.ClientProfile)}
}

func (s *stubClients) GetClientProfile(ctx context.Context, accountID string) (*identity.ClientProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++

	p, ok := s.profiles[accountID]
	if !ok {
		return nil, ErrNotFound
	}

	return p, nil
}

func (s *stubClients) CreateClientProfile(ctx context.Context, p *identity.ClientProfile) error {
	return ErrConflict
}

func (s *stubClients) UpdateClientProfile(ctx context.Context, accountID string, patch Patch) error {
	return ErrNotFound
}

func (s *stubClients) seed(p *identity.ClientProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.ID] = p
}

func newTestResolver(teams *stubTeams, clients *stubClients, cacheCfg xcache.Config) *Resolver {
	return NewResolver(ResolverParams{
		Config:      Config{RetryDelay: time.Millisecond},
		CacheConfig: cacheCfg,
		Teams:       teams,
		Clients:     clients,
	})
}

func TestResolveOrder(t *testing.T) {
	teams := newStubTeams()
	clients := newStubClients()
	r := newTestResolver(teams, clients, xcache.Config{})
	ctx := context.Background()

	t.Run("team wins when both tables hold a row", func(t *testing.T) {
		teams.seed(&identity.TeamProfile{ID: "acct-1", Role: identity.TeamRoleAdmin})
		clients.seed(&identity.ClientProfile{ID: "acct-1", Role: identity.ClientRoleOwner})

		p, err := r.Resolve(ctx, "acct-1")
		require.NoError(t, err)
		assert.True(t, p.IsTeam())
	})

	t.Run("client row resolves when team table is empty", func(t *testing.T) {
		clients.seed(&identity.ClientProfile{
			ID:      "acct-2",
			Role:    identity.ClientRoleFinance,
			Company: identity.Company{ID: "co-1", Name: "Acme"},
		})

		p, err := r.Resolve(ctx, "acct-2")
		require.NoError(t, err)
		require.True(t, p.IsClient())
		assert.Equal(t, "Acme", p.Client.Company.Name)
	})

	t.Run("absence of both is not found", func(t *testing.T) {
		_, err := r.Resolve(ctx, "acct-3")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResolveRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("one failure then success", func(t *testing.T) {
		teams := newStubTeams()
		teams.seed(&identity.TeamProfile{ID: "acct-1", Role: identity.TeamRoleModerator})
		teams.getErrs = []error{errBackend}
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		p, err := r.Resolve(ctx, "acct-1")
		require.NoError(t, err)
		assert.Equal(t, identity.TeamRoleModerator, p.Team.Role)
		assert.Equal(t, 2, teams.gets)
	})

	t.Run("persistent failure degrades to not found", func(t *testing.T) {
		teams := newStubTeams()
		teams.seed(&identity.TeamProfile{ID: "acct-1", Role: identity.TeamRoleModerator})
		teams.getErrs = []error{errBackend, errBackend}
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		_, err := r.Resolve(ctx, "acct-1")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 2, teams.gets)
	})
}

func TestResolveWithBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a team profile at the lowest role", func(t *testing.T) {
		teams := newStubTeams()
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		acct := credential.Account{
			ID:    "acct-1",
			Email: "new@fernhill.test",
			Metadata: map[string]string{
				credential.MetaDisplayName: "New Hire",
				credential.MetaAvatarURL:   "https://cdn.fernhill.test/a.png",
			},
		}

		p, err := r.ResolveWithBootstrap(ctx, acct)
		require.NoError(t, err)
		require.True(t, p.IsTeam())
		assert.Equal(t, identity.TeamRoleUser, p.Team.Role)
		assert.Equal(t, "New Hire", p.Team.DisplayName)
		assert.Equal(t, "https://cdn.fernhill.test/a.png", p.Team.AvatarURL)
		assert.Equal(t, 1, teams.creates)
	})

	t.Run("display name falls back to email", func(t *testing.T) {
		teams := newStubTeams()
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		p, err := r.ResolveWithBootstrap(ctx, credential.Account{ID: "acct-2", Email: "plain@fernhill.test"})
		require.NoError(t, err)
		assert.Equal(t, "plain@fernhill.test", p.Team.DisplayName)
	})

	t.Run("existing profile short-circuits", func(t *testing.T) {
		teams := newStubTeams()
		teams.seed(&identity.TeamProfile{ID: "acct-3", Role: identity.TeamRoleAdmin})
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		p, err := r.ResolveWithBootstrap(ctx, credential.Account{ID: "acct-3", Email: "admin@fernhill.test"})
		require.NoError(t, err)
		assert.Equal(t, identity.TeamRoleAdmin, p.Team.Role)
		assert.Zero(t, teams.creates)
	})

	t.Run("lost creation race re-reads the winner", func(t *testing.T) {
		teams := newStubTeams()
		teams.createErr = ErrConflict
		r := newTestResolver(teams, newStubClients(), xcache.Config{})

		// Simulate the concurrent writer landing its row between our failed
		// create and the re-read.
		teams.seed(&identity.TeamProfile{ID: "acct-4", Role: identity.TeamRoleUser})

		p, err := r.ResolveWithBootstrap(ctx, credential.Account{ID: "acct-4", Email: "race@fernhill.test"})
		require.NoError(t, err)
		assert.Equal(t, identity.TeamRoleUser, p.Team.Role)
	})

	t.Run("variant conflict re-reads the client row", func(t *testing.T) {
		teams := newStubTeams()
		clients := newStubClients()

		// The client row lands between the failed lookup and the bootstrap
		// create, as when an invitation acceptance races a first sign-in.
		teams.createErr = ErrVariantConflict
		teams.onCreate = func() {
			clients.seed(&identity.ClientProfile{ID: "acct-5", Role: identity.ClientRoleMember})
		}

		r := newTestResolver(teams, clients, xcache.Config{})

		p, err := r.ResolveWithBootstrap(ctx, credential.Account{ID: "acct-5", Email: "contact@acme.test"})
		require.NoError(t, err)
		assert.True(t, p.IsClient())
		assert.Equal(t, 1, teams.creates)
	})
}

func TestResolveCaching(t *testing.T) {
	teams := newStubTeams()
	teams.seed(&identity.TeamProfile{ID: "acct-1", Role: identity.TeamRoleAdmin})
	r := newTestResolver(teams, newStubClients(), xcache.Config{Mode: xcache.ModeMemory})
	ctx := context.Background()

	_, err := r.Resolve(ctx, "acct-1")
	require.NoError(t, err)

	_, err = r.Resolve(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, teams.gets, "second resolve must be served from cache")

	r.Invalidate(ctx, "acct-1")

	_, err = r.Resolve(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, teams.gets, "invalidate must force a storage re-read")
}

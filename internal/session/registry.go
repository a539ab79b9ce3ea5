package session

import (
	"context"
	"sync"

	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/profile"
)

type RegistryParams struct {
	fx.In

	Directory credential.Directory
	Tokens    *credential.TokenIssuer
	Resolver  *profile.Resolver
	Teams     profile.TeamStore
	Clients   profile.ClientStore
}

// Registry hands out one Manager per device id, creating and starting it on
// first use. Each manager owns a LocalStore over the shared directory and
// token issuer, so sessions on different devices are independent.
type Registry struct {
	dir      credential.Directory
	tokens   *credential.TokenIssuer
	resolver Resolver
	profiles Profiles

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(params RegistryParams) *Registry {
	return &Registry{
		dir:      params.Directory,
		tokens:   params.Tokens,
		resolver: params.Resolver,
		profiles: Profiles{Teams: params.Teams, Clients: params.Clients},
		managers: make(map[string]*Manager),
	}
}

// Manager returns the manager for a device id, creating it if absent.
func (r *Registry) Manager(ctx context.Context, deviceID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[deviceID]; ok {
		return m, nil
	}

	store := credential.NewLocalStore(r.dir, r.tokens)
	m := NewManager(store, r.resolver, r.profiles)

	if err := m.Start(ctx); err != nil {
		m.Stop()

		return nil, err
	}

	log.Debug(ctx, "session: started manager for device",
		log.String("device_id", deviceID),
	)

	r.managers[deviceID] = m

	return m, nil
}

// Drop stops and forgets a device's manager. Used when its device cookie is
// evicted.
func (r *Registry) Drop(deviceID string) {
	r.mu.Lock()
	m, ok := r.managers[deviceID]
	delete(r.managers, deviceID)
	r.mu.Unlock()

	if ok {
		m.Stop()
	}
}

// Close stops every manager. Called from the fx shutdown hook.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range managers {
		m.Stop()
	}
}

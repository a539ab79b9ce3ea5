package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/metrics"
	"github.com/fernhill/clienthub/internal/pkg/xcache"
)

// Config controls resolver retry behavior.
type Config struct {
	// RetryDelay absorbs replication lag immediately after account creation.
	// One retry, fixed delay.
	RetryDelay time.Duration `conf:"retry_delay" yaml:"retry_delay" json:"retry_delay"`
}

const defaultRetryDelay = 300 * time.Millisecond

type ResolverParams struct {
	fx.In

	Config      Config
	CacheConfig xcache.Config
	Teams       TeamStore
	Clients     ClientStore
}

// Resolver turns an account id into a typed principal. Lookup order is fixed:
// team profile first, then client profile joined to its company. Absence of
// both is NotFound, not an error.
type Resolver struct {
	teams      TeamStore
	clients    ClientStore
	cache      xcache.Cache[identity.Principal]
	retryDelay time.Duration
}

func NewResolver(params ResolverParams) *Resolver {
	delay := params.Config.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Resolver{
		teams:      params.Teams,
		clients:    params.Clients,
		cache:      xcache.NewFromConfig[identity.Principal](params.CacheConfig),
		retryDelay: delay,
	}
}

// Resolve fetches the principal for an account id. A transient store failure
// is retried once after a fixed delay, then treated as ErrNotFound so a
// backend hiccup degrades to "authenticated, unresolved" instead of an error
// page.
func (r *Resolver) Resolve(ctx context.Context, accountID string) (*identity.Principal, error) {
	cacheKey := buildPrincipalCacheKey(accountID)
	if p, err := r.cache.Get(ctx, cacheKey); err == nil {
		return &p, nil
	}

	p, err := r.lookup(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn(ctx, "profile: transient lookup failure, retrying once",
			log.String("account_id", accountID),
			log.Cause(err),
		)

		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		p, err = r.lookup(ctx, accountID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Warn(ctx, "profile: lookup failed after retry, treating as not found",
				log.String("account_id", accountID),
				log.Cause(err),
			)

			return nil, ErrNotFound
		}
	}

	if err != nil {
		return nil, err
	}

	if cacheErr := r.cache.Set(ctx, cacheKey, *p); cacheErr != nil {
		log.Warn(ctx, "profile: failed to cache principal", log.Cause(cacheErr))
	}

	return p, nil
}

// lookup checks the team table then the client table. The variant is decided
// by which table holds a row, never by caller-supplied data.
func (r *Resolver) lookup(ctx context.Context, accountID string) (*identity.Principal, error) {
	team, err := r.teams.GetTeamProfile(ctx, accountID)
	if err == nil {
		return identity.NewTeamPrincipal(team), nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	client, err := r.clients.GetClientProfile(ctx, accountID)
	if err == nil {
		return identity.NewClientPrincipal(client), nil
	}

	return nil, err
}

// ResolveWithBootstrap resolves, and on NotFound creates a team profile
// seeded from account metadata at the lowest-privilege role. Client profiles
// are never auto-created; their absence is terminal until an invitation.
//
// A creation failure caused by a uniqueness violation means another writer
// (a second tab handling the same first sign-in) won the race; the resolver
// re-issues the lookup instead of surfacing the error. Bound to one retry.
func (r *Resolver) ResolveWithBootstrap(ctx context.Context, acct credential.Account) (*identity.Principal, error) {
	p, err := r.Resolve(ctx, acct.ID)
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	metrics.BootstrapAttempts.Add(ctx, 1)

	now := time.Now()
	seed := &identity.TeamProfile{
		ID:          acct.ID,
		Email:       acct.Email,
		DisplayName: displayNameFor(acct),
		AvatarURL:   acct.Metadata[credential.MetaAvatarURL],
		Role:        identity.TeamRoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = r.teams.CreateTeamProfile(ctx, seed)

	switch {
	case err == nil:
		log.Info(ctx, "profile: bootstrapped team profile",
			log.String("account_id", acct.ID),
		)
	case errors.Is(err, ErrConflict), errors.Is(err, ErrVariantConflict):
		// Another writer created the profile between our lookup and create.
		log.Debug(ctx, "profile: bootstrap lost creation race, re-reading",
			log.String("account_id", acct.ID),
		)
	default:
		return nil, fmt.Errorf("failed to bootstrap team profile: %w", err)
	}

	r.Invalidate(ctx, acct.ID)

	return r.Resolve(ctx, acct.ID)
}

// Invalidate drops the cached principal so the next Resolve re-reads storage.
// Called after every profile write.
func (r *Resolver) Invalidate(ctx context.Context, accountID string) {
	_ = r.cache.Delete(ctx, buildPrincipalCacheKey(accountID))
}

func displayNameFor(acct credential.Account) string {
	if name := acct.Metadata[credential.MetaDisplayName]; name != "" {
		return name
	}

	return acct.Email
}

func buildPrincipalCacheKey(accountID string) string {
	return fmt.Sprintf("principal:%s", accountID)
}

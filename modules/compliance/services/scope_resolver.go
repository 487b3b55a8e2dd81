package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

const defaultRefreshInterval = 30 * time.Second

type ResolverConfig struct {
	// RefreshInterval bounds snapshot staleness; zero means the 30s default.
	RefreshInterval time.Duration
	// RequireScopeID, when set, rejects non-GLOBAL requested scopes that
	// carry no identifier instead of treating them as tag wildcards.
	RequireScopeID bool
	// Now is the clock source; zero means time.Now.
	Now func() time.Time
}

// ScopeResolver resolves policy keys to effective values through the scope
// precedence ladder. It serves every read from an immutable snapshot that
// the refresh path replaces atomically; in-flight reads against the old
// snapshot complete unaffected.
type ScopeResolver struct {
	store           ports.ConfigStore
	refreshInterval time.Duration
	requireScopeID  bool
	now             func() time.Time

	snap      atomic.Pointer[snapshot]
	degraded  atomic.Bool
	refreshMu sync.Mutex
}

func NewScopeResolver(store ports.ConfigStore, cfg ResolverConfig) *ScopeResolver {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ScopeResolver{
		store:           store,
		refreshInterval: interval,
		requireScopeID:  cfg.RequireScopeID,
		now:             now,
	}
}

// Refresh loads a fresh snapshot from the store and publishes it. On store
// failure the previous snapshot stays published and subsequent resolutions
// are flagged degraded; no partial snapshot is ever visible.
func (r *ScopeResolver) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	policies, err := r.store.FetchAllPolicies(ctx, "")
	if err != nil {
		r.degraded.Store(true)
		return err
	}
	r.snap.Store(buildSnapshot(policies, r.now()))
	r.degraded.Store(false)
	return nil
}

// Invalidate forces a refresh after an administrative write.
func (r *ScopeResolver) Invalidate(ctx context.Context) error {
	return r.Refresh(ctx)
}

// Run refreshes the snapshot periodically until ctx is cancelled. Refresh
// failures keep the last good snapshot; they surface through the Degraded
// marker on resolutions, not through Run.
func (r *ScopeResolver) Run(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}

// Resolve returns the effective value for key within scope, with the
// source level that produced it.
func (r *ScopeResolver) Resolve(ctx context.Context, key string, scope types.Scope) (types.Resolution, error) {
	scope = scope.OrGlobal()
	if err := scope.Validate(); err != nil {
		return types.Resolution{}, err
	}
	if r.requireScopeID && scope.IsWildcard() {
		return types.Resolution{}, &types.InvalidScopeError{
			Tag:    scope.Tag,
			Reason: "scope identifier required",
		}
	}

	snap := r.snap.Load()
	if snap == nil {
		if err := r.Refresh(ctx); err != nil {
			return types.Resolution{}, ports.ErrStoreUnavailable
		}
		snap = r.snap.Load()
	}

	res, err := snap.resolve(key, scope)
	if err != nil {
		return types.Resolution{}, err
	}
	res.Degraded = r.degraded.Load()
	return res, nil
}

// ResolveFlag resolves a boolean-valued policy (a feature flag).
func (r *ScopeResolver) ResolveFlag(ctx context.Context, key string, scope types.Scope) (bool, error) {
	res, err := r.Resolve(ctx, key, scope)
	if err != nil {
		return false, err
	}
	enabled, err := strconv.ParseBool(res.Value)
	if err != nil {
		return false, fmt.Errorf("flag %s: value %q is not boolean", key, res.Value)
	}
	return enabled, nil
}

// ListPolicies returns the snapshot's policies, loading one if needed.
func (r *ScopeResolver) ListPolicies(ctx context.Context) ([]types.Policy, bool, error) {
	snap := r.snap.Load()
	if snap == nil {
		if err := r.Refresh(ctx); err != nil {
			return nil, false, ports.ErrStoreUnavailable
		}
		snap = r.snap.Load()
	}
	return snap.listPolicies(), r.degraded.Load(), nil
}

// PutOverride validates and writes an override through the store, then
// invalidates the snapshot so the write is visible to the next resolution.
// The store upserts on (policy, tag, id): last write wins, never duplicates.
func (r *ScopeResolver) PutOverride(ctx context.Context, o types.Override) (types.Override, error) {
	if err := o.Scope().Validate(); err != nil {
		return types.Override{}, err
	}
	written, err := r.store.WriteOverride(ctx, o)
	if err != nil {
		return types.Override{}, err
	}
	_ = r.Invalidate(ctx)
	return written, nil
}

// DeleteOverride resets the (policy, tag, id) pair to default resolution.
func (r *ScopeResolver) DeleteOverride(ctx context.Context, policyKey string, tag types.ScopeTag, scopeID string) error {
	if err := (types.Scope{Tag: tag, ID: scopeID}).Validate(); err != nil {
		return err
	}
	if err := r.store.DeleteOverride(ctx, policyKey, tag, scopeID); err != nil {
		return err
	}
	_ = r.Invalidate(ctx)
	return nil
}

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

// memConfigStore is an in-memory ports.ConfigStore with the same
// last-write-wins override semantics as the pg store.
type memConfigStore struct {
	mu       sync.Mutex
	policies map[string]types.Policy
	fail     bool
	fetches  int
}

func newMemConfigStore(policies ...types.Policy) *memConfigStore {
	s := &memConfigStore{policies: make(map[string]types.Policy)}
	for _, p := range policies {
		s.policies[p.Key] = p
	}
	return s
}

func (s *memConfigStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *memConfigStore) FetchPolicy(_ context.Context, key string) (types.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return types.Policy{}, ports.ErrStoreUnavailable
	}
	p, ok := s.policies[key]
	if !ok {
		return types.Policy{}, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, key)
	}
	return p, nil
}

func (s *memConfigStore) FetchAllPolicies(_ context.Context, category types.PolicyCategory) ([]types.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, ports.ErrStoreUnavailable
	}
	s.fetches++
	var out []types.Policy
	for _, p := range s.policies {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memConfigStore) FetchOverrides(_ context.Context, policyKey string) ([]types.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, ports.ErrStoreUnavailable
	}
	p, ok := s.policies[policyKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, policyKey)
	}
	return p.Overrides, nil
}

func (s *memConfigStore) WriteOverride(_ context.Context, o types.Override) (types.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return types.Override{}, ports.ErrStoreUnavailable
	}
	p, ok := s.policies[o.PolicyKey]
	if !ok {
		return types.Override{}, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, o.PolicyKey)
	}
	replaced := false
	for i, existing := range p.Overrides {
		if existing.Tag == o.Tag && existing.ScopeID == o.ScopeID {
			o.ID = existing.ID
			p.Overrides[i] = o
			replaced = true
			break
		}
	}
	if !replaced {
		if o.ID == "" {
			o.ID = fmt.Sprintf("ovr-%d", len(p.Overrides)+1)
		}
		p.Overrides = append(p.Overrides, o)
	}
	s.policies[o.PolicyKey] = p
	return o, nil
}

func (s *memConfigStore) DeleteOverride(_ context.Context, policyKey string, tag types.ScopeTag, scopeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ports.ErrStoreUnavailable
	}
	p, ok := s.policies[policyKey]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, policyKey)
	}
	kept := p.Overrides[:0]
	for _, existing := range p.Overrides {
		if existing.Tag == tag && existing.ScopeID == scopeID {
			continue
		}
		kept = append(kept, existing)
	}
	p.Overrides = kept
	s.policies[policyKey] = p
	return nil
}

func (s *memConfigStore) EnsurePolicy(_ context.Context, p types.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ports.ErrStoreUnavailable
	}
	if _, ok := s.policies[p.Key]; !ok {
		s.policies[p.Key] = p
	}
	return nil
}

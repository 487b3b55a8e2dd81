package services

import (
	"fmt"
	"time"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

type overrideKey struct {
	tag types.ScopeTag
	id  string
}

type snapshotPolicy struct {
	policy   types.Policy
	exact    map[overrideKey]types.Override
	wildcard map[types.ScopeTag]types.Override
}

// snapshot is an immutable view of all policies and overrides. It is built
// once and published atomically; resolution never mutates it, so concurrent
// reads need no locking.
type snapshot struct {
	policies map[string]snapshotPolicy
	loadedAt time.Time
}

func buildSnapshot(policies []types.Policy, at time.Time) *snapshot {
	s := &snapshot{
		policies: make(map[string]snapshotPolicy, len(policies)),
		loadedAt: at,
	}
	for _, p := range policies {
		sp := snapshotPolicy{
			policy:   p,
			exact:    make(map[overrideKey]types.Override),
			wildcard: make(map[types.ScopeTag]types.Override),
		}
		for _, o := range p.Overrides {
			if o.ScopeID == "" {
				sp.wildcard[o.Tag] = o
				continue
			}
			sp.exact[overrideKey{tag: o.Tag, id: o.ScopeID}] = o
		}
		s.policies[p.Key] = sp
	}
	return s
}

// resolve walks the precedence ladder, first match wins:
//  1. override on exactly the requested (tag, id)
//  2. override on the requested tag with no id (tag-level wildcard)
//  3. override on GLOBAL
//  4. the policy's declared default
//
// Each step short-circuits; values are never blended across levels.
func (s *snapshot) resolve(key string, scope types.Scope) (types.Resolution, error) {
	sp, ok := s.policies[key]
	if !ok {
		return types.Resolution{}, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, key)
	}

	if scope.Tag != types.ScopeGlobal {
		if scope.ID != "" {
			if o, ok := sp.exact[overrideKey{tag: scope.Tag, id: scope.ID}]; ok {
				return types.Resolution{
					Key:   key,
					Value: o.Value,
					Source: types.ValueSource{
						Level:     types.SourceScope,
						Tag:       o.Tag,
						ScopeID:   o.ScopeID,
						ScopeName: o.ScopeName,
					},
				}, nil
			}
		}
		if o, ok := sp.wildcard[scope.Tag]; ok {
			return types.Resolution{
				Key:    key,
				Value:  o.Value,
				Source: types.ValueSource{Level: types.SourceWildcard, Tag: o.Tag},
			}, nil
		}
	}

	if o, ok := sp.wildcard[types.ScopeGlobal]; ok {
		return types.Resolution{
			Key:    key,
			Value:  o.Value,
			Source: types.ValueSource{Level: types.SourceGlobal, Tag: types.ScopeGlobal},
		}, nil
	}

	return types.Resolution{
		Key:    key,
		Value:  sp.policy.DefaultValue,
		Source: types.ValueSource{Level: types.SourceDefault},
	}, nil
}

func (s *snapshot) listPolicies() []types.Policy {
	out := make([]types.Policy, 0, len(s.policies))
	for _, sp := range s.policies {
		out = append(out, sp.policy)
	}
	return out
}

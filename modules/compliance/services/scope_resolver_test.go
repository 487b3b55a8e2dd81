package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

func newTestResolver(t *testing.T, store ports.ConfigStore, cfg ResolverConfig) *ScopeResolver {
	t.Helper()
	r := NewScopeResolver(store, cfg)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh err=%v", err)
	}
	return r
}

func TestResolve_NoOverridesReturnsDefault(t *testing.T) {
	store := newMemConfigStore(types.Policy{Key: "dispatch.max_radius_km", Category: types.PolicyCategoryDispatch, DefaultValue: "25"})
	r := newTestResolver(t, store, ResolverConfig{})

	for _, scope := range []types.Scope{
		types.GlobalScope,
		{Tag: types.ScopeRegion, ID: "r1"},
		{Tag: types.ScopeOrg, ID: "org1"},
		{Tag: types.ScopeServiceCategory},
	} {
		res, err := r.Resolve(context.Background(), "dispatch.max_radius_km", scope)
		if err != nil {
			t.Fatalf("scope=%v err=%v", scope, err)
		}
		if res.Value != "25" || res.Source.Level != types.SourceDefault {
			t.Fatalf("scope=%v value=%q source=%s want 25/DEFAULT", scope, res.Value, res.Source)
		}
	}
}

func TestResolve_OmittedScopeResolvesGlobally(t *testing.T) {
	store := newMemConfigStore(types.Policy{
		Key:          "dispatch.max_radius_km",
		DefaultValue: "25",
		Overrides: []types.Override{
			{PolicyKey: "dispatch.max_radius_km", Tag: types.ScopeGlobal, Value: "40"},
			{PolicyKey: "dispatch.max_radius_km", Tag: types.ScopeRegion, ScopeID: "r1", Value: "60"},
		},
	})
	r := newTestResolver(t, store, ResolverConfig{})

	res, err := r.Resolve(context.Background(), "dispatch.max_radius_km", types.Scope{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Value != "40" || res.Source.String() != "GLOBAL" {
		t.Fatalf("value=%q source=%s want 40/GLOBAL", res.Value, res.Source)
	}
}

func TestResolve_GlobalOverrideWinsOverDefault(t *testing.T) {
	store := newMemConfigStore(types.Policy{
		Key:          "dispatch.max_radius_km",
		DefaultValue: "25",
		Overrides: []types.Override{
			{PolicyKey: "dispatch.max_radius_km", Tag: types.ScopeGlobal, Value: "40"},
		},
	})
	r := newTestResolver(t, store, ResolverConfig{})

	res, err := r.Resolve(context.Background(), "dispatch.max_radius_km", types.Scope{Tag: types.ScopeRegion, ID: "r1"})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Value != "40" {
		t.Fatalf("value=%q want 40", res.Value)
	}
	if res.Source.String() != "GLOBAL" {
		t.Fatalf("source=%s want GLOBAL", res.Source)
	}
}

func TestResolve_PrecedenceLadder(t *testing.T) {
	store := newMemConfigStore(types.Policy{
		Key:          "dispatch.auto_assign",
		DefaultValue: "off",
		Overrides: []types.Override{
			{PolicyKey: "dispatch.auto_assign", Tag: types.ScopeOrg, ScopeID: "org1", Value: "org-value", ScopeName: "Acme Field Co"},
			{PolicyKey: "dispatch.auto_assign", Tag: types.ScopeServiceCategory, Value: "category-wildcard"},
			{PolicyKey: "dispatch.auto_assign", Tag: types.ScopeGlobal, Value: "global-value"},
		},
	})
	r := newTestResolver(t, store, ResolverConfig{})

	tests := []struct {
		scope      types.Scope
		wantValue  string
		wantSource string
	}{
		{types.Scope{Tag: types.ScopeOrg, ID: "org1"}, "org-value", "ORG:org1 (Acme Field Co)"},
		{types.Scope{Tag: types.ScopeServiceCategory}, "category-wildcard", "SERVICE_CATEGORY:*"},
		{types.Scope{Tag: types.ScopeServiceCategory, ID: "plumbing"}, "category-wildcard", "SERVICE_CATEGORY:*"},
		{types.Scope{Tag: types.ScopeRegion, ID: "unrelated"}, "global-value", "GLOBAL"},
		{types.Scope{Tag: types.ScopeOrg, ID: "org2"}, "global-value", "GLOBAL"},
	}
	for _, tt := range tests {
		res, err := r.Resolve(context.Background(), "dispatch.auto_assign", tt.scope)
		if err != nil {
			t.Fatalf("scope=%v err=%v", tt.scope, err)
		}
		if res.Value != tt.wantValue {
			t.Fatalf("scope=%v value=%q want %q", tt.scope, res.Value, tt.wantValue)
		}
		if res.Source.String() != tt.wantSource {
			t.Fatalf("scope=%v source=%s want %s", tt.scope, res.Source, tt.wantSource)
		}
	}
}

func TestPutOverride_SamePairReplaces(t *testing.T) {
	store := newMemConfigStore(types.Policy{Key: "feature.instant_booking", Category: types.PolicyCategoryFeature, DefaultValue: "false"})
	r := newTestResolver(t, store, ResolverConfig{})

	for _, value := range []string{"true", "false", "true"} {
		if _, err := r.PutOverride(context.Background(), types.Override{
			PolicyKey: "feature.instant_booking",
			Tag:       types.ScopeOrg,
			ScopeID:   "org1",
			Value:     value,
		}); err != nil {
			t.Fatalf("put value=%s err=%v", value, err)
		}
	}

	overrides, err := store.FetchOverrides(context.Background(), "feature.instant_booking")
	if err != nil {
		t.Fatalf("fetch err=%v", err)
	}
	if len(overrides) != 1 {
		t.Fatalf("overrides=%d want 1 (replace, not duplicate)", len(overrides))
	}

	enabled, err := r.ResolveFlag(context.Background(), "feature.instant_booking", types.Scope{Tag: types.ScopeOrg, ID: "org1"})
	if err != nil {
		t.Fatalf("resolve err=%v", err)
	}
	if !enabled {
		t.Fatalf("enabled=false want latest write (true)")
	}
}

func TestDeleteOverride_ResetsToDefault(t *testing.T) {
	store := newMemConfigStore(types.Policy{
		Key:          "feature.instant_booking",
		DefaultValue: "false",
		Overrides: []types.Override{
			{PolicyKey: "feature.instant_booking", Tag: types.ScopeRegion, ScopeID: "r1", Value: "true"},
		},
	})
	r := newTestResolver(t, store, ResolverConfig{})

	if err := r.DeleteOverride(context.Background(), "feature.instant_booking", types.ScopeRegion, "r1"); err != nil {
		t.Fatalf("delete err=%v", err)
	}
	res, err := r.Resolve(context.Background(), "feature.instant_booking", types.Scope{Tag: types.ScopeRegion, ID: "r1"})
	if err != nil {
		t.Fatalf("resolve err=%v", err)
	}
	if res.Source.Level != types.SourceDefault || res.Value != "false" {
		t.Fatalf("value=%q source=%s want false/DEFAULT", res.Value, res.Source)
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	r := newTestResolver(t, newMemConfigStore(), ResolverConfig{})
	_, err := r.Resolve(context.Background(), "nope", types.GlobalScope)
	if !errors.Is(err, ports.ErrPolicyNotFound) {
		t.Fatalf("err=%v want ErrPolicyNotFound", err)
	}
}

func TestResolve_InvalidScope(t *testing.T) {
	r := newTestResolver(t, newMemConfigStore(types.Policy{Key: "k", DefaultValue: "v"}), ResolverConfig{})

	_, err := r.Resolve(context.Background(), "k", types.Scope{Tag: types.ScopeGlobal, ID: "g1"})
	var scopeErr *types.InvalidScopeError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("err=%v want InvalidScopeError", err)
	}

	_, err = r.Resolve(context.Background(), "k", types.Scope{Tag: "PLANET", ID: "earth"})
	if !errors.As(err, &scopeErr) {
		t.Fatalf("err=%v want InvalidScopeError", err)
	}
}

func TestResolve_RequireScopeIDMode(t *testing.T) {
	policy := types.Policy{
		Key:          "k",
		DefaultValue: "default",
		Overrides: []types.Override{
			{PolicyKey: "k", Tag: types.ScopeRegion, Value: "region-wildcard"},
		},
	}

	// Wildcard mode: a tag-only scope matches the tag wildcard.
	r := newTestResolver(t, newMemConfigStore(policy), ResolverConfig{})
	res, err := r.Resolve(context.Background(), "k", types.Scope{Tag: types.ScopeRegion})
	if err != nil {
		t.Fatalf("wildcard mode err=%v", err)
	}
	if res.Value != "region-wildcard" {
		t.Fatalf("wildcard mode value=%q", res.Value)
	}

	// Require-identifier mode: the same request is an invalid scope.
	strict := newTestResolver(t, newMemConfigStore(policy), ResolverConfig{RequireScopeID: true})
	_, err = strict.Resolve(context.Background(), "k", types.Scope{Tag: types.ScopeRegion})
	var scopeErr *types.InvalidScopeError
	if !errors.As(err, &scopeErr) {
		t.Fatalf("strict mode err=%v want InvalidScopeError", err)
	}

	// A concrete identifier still resolves in strict mode.
	res, err = strict.Resolve(context.Background(), "k", types.Scope{Tag: types.ScopeRegion, ID: "r1"})
	if err != nil {
		t.Fatalf("strict mode concrete err=%v", err)
	}
	if res.Value != "region-wildcard" {
		t.Fatalf("strict mode concrete value=%q", res.Value)
	}
}

func TestResolve_StoreUnavailableBeforeFirstSnapshot(t *testing.T) {
	store := newMemConfigStore(types.Policy{Key: "k", DefaultValue: "v"})
	store.setFail(true)
	r := NewScopeResolver(store, ResolverConfig{})

	_, err := r.Resolve(context.Background(), "k", types.GlobalScope)
	if !errors.Is(err, ports.ErrStoreUnavailable) {
		t.Fatalf("err=%v want ErrStoreUnavailable", err)
	}
}

func TestResolve_ServesStaleSnapshotDegraded(t *testing.T) {
	store := newMemConfigStore(types.Policy{Key: "k", DefaultValue: "v"})
	r := newTestResolver(t, store, ResolverConfig{})

	store.setFail(true)
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatalf("refresh err=nil want store failure")
	}

	res, err := r.Resolve(context.Background(), "k", types.GlobalScope)
	if err != nil {
		t.Fatalf("err=%v want stale serving", err)
	}
	if res.Value != "v" || !res.Degraded {
		t.Fatalf("value=%q degraded=%v want v/true", res.Value, res.Degraded)
	}

	store.setFail(false)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh err=%v", err)
	}
	res, err = r.Resolve(context.Background(), "k", types.GlobalScope)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Degraded {
		t.Fatalf("degraded=true after successful refresh")
	}
}

func TestResolve_IdempotentAgainstUnchangedSnapshot(t *testing.T) {
	store := newMemConfigStore(types.Policy{
		Key:          "k",
		DefaultValue: "v",
		Overrides:    []types.Override{{PolicyKey: "k", Tag: types.ScopeOrg, ScopeID: "org1", Value: "o"}},
	})
	r := newTestResolver(t, store, ResolverConfig{})

	scope := types.Scope{Tag: types.ScopeOrg, ID: "org1"}
	first, err := r.Resolve(context.Background(), "k", scope)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	second, err := r.Resolve(context.Background(), "k", scope)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if first != second {
		t.Fatalf("first=%+v second=%+v want identical", first, second)
	}
}

func TestResolve_ConcurrentReadsDuringRefresh(t *testing.T) {
	store := newMemConfigStore(types.Policy{Key: "k", DefaultValue: "v"})
	r := newTestResolver(t, store, ResolverConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				res, err := r.Resolve(context.Background(), "k", types.GlobalScope)
				if err != nil || res.Value != "v" {
					t.Errorf("value=%q err=%v", res.Value, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if err := r.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh err=%v", err)
		}
	}
	wg.Wait()
}

func TestResolveFlag_NonBooleanValue(t *testing.T) {
	r := newTestResolver(t, newMemConfigStore(types.Policy{Key: "feature.x", DefaultValue: "banana"}), ResolverConfig{})
	if _, err := r.ResolveFlag(context.Background(), "feature.x", types.GlobalScope); err == nil {
		t.Fatalf("err=nil want non-boolean failure")
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

const testTenantHost = "compliance.test"

// fakeConfigStore is an in-memory ports.ConfigStore with the same
// last-write-wins override semantics as the pg store.
type fakeConfigStore struct {
	mu            sync.Mutex
	policies      map[string]types.Policy
	fail          bool
	fetchAllCalls int
}

func newFakeConfigStore(policies ...types.Policy) *fakeConfigStore {
	s := &fakeConfigStore{policies: make(map[string]types.Policy)}
	for _, p := range policies {
		s.policies[p.Key] = p
	}
	return s
}

func (s *fakeConfigStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *fakeConfigStore) FetchPolicy(_ context.Context, key string) (types.Policy, error) {
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

func (s *fakeConfigStore) fetchAllCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchAllCalls
}

func (s *fakeConfigStore) FetchAllPolicies(_ context.Context, category types.PolicyCategory) ([]types.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchAllCalls++
	if s.fail {
		return nil, ports.ErrStoreUnavailable
	}
	var out []types.Policy
	for _, p := range s.policies {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeConfigStore) FetchOverrides(_ context.Context, policyKey string) ([]types.Override, error) {
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

func (s *fakeConfigStore) WriteOverride(_ context.Context, o types.Override) (types.Override, error) {
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

func (s *fakeConfigStore) DeleteOverride(_ context.Context, policyKey string, tag types.ScopeTag, scopeID string) error {
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

func (s *fakeConfigStore) EnsurePolicy(_ context.Context, p types.Policy) error {
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

type fakeAuthorizer struct {
	allow    bool
	enforced bool
	calls    []string
}

func (a *fakeAuthorizer) Authorize(subject, domain, object, action string) (bool, bool, error) {
	a.calls = append(a.calls, subject+"|"+domain+"|"+object+"|"+action)
	return a.allow, a.enforced, nil
}

func testPolicies() []types.Policy {
	return []types.Policy{
		{
			Key:          "feature.instant_booking",
			Category:     types.PolicyCategoryFeature,
			DefaultValue: "true",
			Overrides: []types.Override{
				{ID: "ovr-ff-1", PolicyKey: "feature.instant_booking", Tag: types.ScopeRegion, ScopeID: "metro-north", Value: "false", ScopeName: "Metro North"},
			},
		},
		{
			Key:          "verification.hvac_license",
			Category:     types.PolicyCategoryVerification,
			DefaultValue: `ctx["license_status"] == "valid"`,
		},
		{
			Key:          "sla.total_minutes.high",
			Category:     types.PolicyCategorySla,
			DefaultValue: "120",
		},
		{
			Key:          "sla.warning_threshold_percent",
			Category:     types.PolicyCategorySla,
			DefaultValue: "20",
		},
	}
}

func newTestHandler(t *testing.T, store *fakeConfigStore, az authorizer) http.Handler {
	t.Helper()
	if az == nil {
		az = &fakeAuthorizer{allow: true, enforced: true}
	}
	h, err := NewHandlerWithOptions(HandlerOptions{
		Tenants:     map[string]Tenant{testTenantHost: {ID: "tenant-1", Domain: testTenantHost, Name: "Test Tenant"}},
		Authorizer:  az,
		ConfigStore: store,
		SkipSlaSeed: true,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, role string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = testTenantHost
	if role != "" {
		req.Header.Set(principalRoleHeader, role)
		req.Header.Set(principalIDHeader, "principal-1")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

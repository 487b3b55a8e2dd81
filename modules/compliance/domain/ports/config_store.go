package ports

import (
	"context"
	"errors"

	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

var (
	ErrPolicyNotFound   = errors.New("policy_not_found")
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// ConfigStore is the durable source of policies and their overrides. The
// resolver holds a read-through snapshot over it; it never owns the
// source of truth.
type ConfigStore interface {
	FetchPolicy(ctx context.Context, key string) (types.Policy, error)
	FetchAllPolicies(ctx context.Context, category types.PolicyCategory) ([]types.Policy, error)
	FetchOverrides(ctx context.Context, policyKey string) ([]types.Override, error)
	WriteOverride(ctx context.Context, o types.Override) (types.Override, error)
	DeleteOverride(ctx context.Context, policyKey string, tag types.ScopeTag, scopeID string) error
	EnsurePolicy(ctx context.Context, p types.Policy) error
}

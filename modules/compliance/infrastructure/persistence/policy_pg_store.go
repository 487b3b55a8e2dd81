package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PolicyPGStore is the durable ConfigStore over config.policies and
// config.policy_overrides. Overrides are keyed by (policy_key, scope_type,
// scope_id); writes upsert on that key, so the same pair is replaced and
// never duplicated.
type PolicyPGStore struct {
	db pgQuerier
}

func NewPolicyPGStore(db pgQuerier) ports.ConfigStore {
	return &PolicyPGStore{db: db}
}

func (s *PolicyPGStore) FetchPolicy(ctx context.Context, key string) (types.Policy, error) {
	var p types.Policy
	err := s.db.QueryRow(ctx, `
SELECT policy_key, category, default_value, COALESCE(description, '')
FROM config.policies
WHERE policy_key = $1
`, key).Scan(&p.Key, &p.Category, &p.DefaultValue, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Policy{}, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, key)
	}
	if err != nil {
		return types.Policy{}, storeUnavailable(err)
	}

	overrides, err := s.FetchOverrides(ctx, key)
	if err != nil {
		return types.Policy{}, err
	}
	p.Overrides = overrides
	return p, nil
}

func (s *PolicyPGStore) FetchAllPolicies(ctx context.Context, category types.PolicyCategory) ([]types.Policy, error) {
	rows, err := s.db.Query(ctx, `
SELECT policy_key, category, default_value, COALESCE(description, '')
FROM config.policies
WHERE $1 = '' OR category = $1
ORDER BY policy_key
`, string(category))
	if err != nil {
		return nil, storeUnavailable(err)
	}
	defer rows.Close()

	var policies []types.Policy
	index := make(map[string]int)
	for rows.Next() {
		var p types.Policy
		if err := rows.Scan(&p.Key, &p.Category, &p.DefaultValue, &p.Description); err != nil {
			return nil, storeUnavailable(err)
		}
		index[p.Key] = len(policies)
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable(err)
	}

	ovrRows, err := s.db.Query(ctx, `
SELECT override_id, policy_key, scope_type, scope_id, value, COALESCE(scope_name, '')
FROM config.policy_overrides
ORDER BY policy_key, scope_type, scope_id
`)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	defer ovrRows.Close()

	for ovrRows.Next() {
		var o types.Override
		if err := ovrRows.Scan(&o.ID, &o.PolicyKey, &o.Tag, &o.ScopeID, &o.Value, &o.ScopeName); err != nil {
			return nil, storeUnavailable(err)
		}
		if i, ok := index[o.PolicyKey]; ok {
			policies[i].Overrides = append(policies[i].Overrides, o)
		}
	}
	if err := ovrRows.Err(); err != nil {
		return nil, storeUnavailable(err)
	}
	return policies, nil
}

func (s *PolicyPGStore) FetchOverrides(ctx context.Context, policyKey string) ([]types.Override, error) {
	rows, err := s.db.Query(ctx, `
SELECT override_id, policy_key, scope_type, scope_id, value, COALESCE(scope_name, '')
FROM config.policy_overrides
WHERE policy_key = $1
ORDER BY scope_type, scope_id
`, policyKey)
	if err != nil {
		return nil, storeUnavailable(err)
	}
	defer rows.Close()

	var overrides []types.Override
	for rows.Next() {
		var o types.Override
		if err := rows.Scan(&o.ID, &o.PolicyKey, &o.Tag, &o.ScopeID, &o.Value, &o.ScopeName); err != nil {
			return nil, storeUnavailable(err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeUnavailable(err)
	}
	return overrides, nil
}

func (s *PolicyPGStore) WriteOverride(ctx context.Context, o types.Override) (types.Override, error) {
	if o.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return types.Override{}, err
		}
		o.ID = id.String()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO config.policy_overrides (override_id, policy_key, scope_type, scope_id, value, scope_name, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), now())
ON CONFLICT (policy_key, scope_type, scope_id)
DO UPDATE SET value = EXCLUDED.value, scope_name = EXCLUDED.scope_name, updated_at = now()
RETURNING override_id
`, o.ID, o.PolicyKey, string(o.Tag), o.ScopeID, o.Value, o.ScopeName).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return types.Override{}, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, o.PolicyKey)
		}
		return types.Override{}, storeUnavailable(err)
	}
	return o, nil
}

func (s *PolicyPGStore) DeleteOverride(ctx context.Context, policyKey string, tag types.ScopeTag, scopeID string) error {
	_, err := s.db.Exec(ctx, `
DELETE FROM config.policy_overrides
WHERE policy_key = $1 AND scope_type = $2 AND scope_id = $3
`, policyKey, string(tag), scopeID)
	if err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func (s *PolicyPGStore) EnsurePolicy(ctx context.Context, p types.Policy) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO config.policies (policy_key, category, default_value, description)
VALUES ($1, $2, $3, NULLIF($4, ''))
ON CONFLICT (policy_key) DO NOTHING
`, p.Key, string(p.Category), p.DefaultValue, p.Description)
	if err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %v", ports.ErrStoreUnavailable, err)
}

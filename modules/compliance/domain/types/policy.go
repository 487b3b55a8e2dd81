package types

import "fmt"

// PolicyCategory labels what a policy value governs.
type PolicyCategory string

const (
	PolicyCategoryFeature      PolicyCategory = "feature"
	PolicyCategoryDispatch     PolicyCategory = "dispatch"
	PolicyCategorySla          PolicyCategory = "sla"
	PolicyCategoryVerification PolicyCategory = "verification"
)

// Policy is a named configuration value with a declared default and zero or
// more scope-specific overrides. A feature flag is a policy whose value
// parses as a boolean.
type Policy struct {
	Key          string
	Category     PolicyCategory
	DefaultValue string
	Description  string
	Overrides    []Override
}

// Override replaces a policy's default for requests resolved within its
// scope. At most one override exists per (policy, tag, id); writes for the
// same pair replace, never duplicate.
type Override struct {
	ID        string
	PolicyKey string
	Tag       ScopeTag
	ScopeID   string
	Value     string
	ScopeName string
}

func (o Override) Scope() Scope {
	return Scope{Tag: o.Tag, ID: o.ScopeID}
}

// SourceLevel identifies which precedence step produced a resolved value.
type SourceLevel string

const (
	SourceScope    SourceLevel = "SCOPE"
	SourceWildcard SourceLevel = "WILDCARD"
	SourceGlobal   SourceLevel = "GLOBAL"
	SourceDefault  SourceLevel = "DEFAULT"
)

type ValueSource struct {
	Level     SourceLevel
	Tag       ScopeTag
	ScopeID   string
	ScopeName string
}

func (s ValueSource) String() string {
	switch s.Level {
	case SourceScope:
		if s.ScopeName != "" {
			return fmt.Sprintf("%s:%s (%s)", s.Tag, s.ScopeID, s.ScopeName)
		}
		return fmt.Sprintf("%s:%s", s.Tag, s.ScopeID)
	case SourceWildcard:
		return string(s.Tag) + ":*"
	case SourceGlobal:
		return "GLOBAL"
	default:
		return "DEFAULT"
	}
}

// Resolution is the outcome of resolving a policy key within a scope.
// Degraded marks values served from a stale snapshot after a refresh failure.
type Resolution struct {
	Key      string
	Value    string
	Source   ValueSource
	Degraded bool
}

package types

import "fmt"

// ScopeTag identifies how specific a configuration override is.
// Precedence, least to most specific: GLOBAL < REGION < SERVICE_CATEGORY < ORG.
type ScopeTag string

const (
	ScopeGlobal          ScopeTag = "GLOBAL"
	ScopeRegion          ScopeTag = "REGION"
	ScopeServiceCategory ScopeTag = "SERVICE_CATEGORY"
	ScopeOrg             ScopeTag = "ORG"
)

var scopeRank = map[ScopeTag]int{
	ScopeGlobal:          0,
	ScopeRegion:          1,
	ScopeServiceCategory: 2,
	ScopeOrg:             3,
}

func (t ScopeTag) Valid() bool {
	_, ok := scopeRank[t]
	return ok
}

// Specificity returns the precedence rank of the tag; higher wins.
func (t ScopeTag) Specificity() int {
	return scopeRank[t]
}

// Scope is a (tag, identifier) pair. GLOBAL never carries an identifier.
// A non-GLOBAL tag with an empty identifier is a tag-level wildcard.
type Scope struct {
	Tag ScopeTag
	ID  string
}

// GlobalScope is the zero-most scope; it matches only GLOBAL overrides.
var GlobalScope = Scope{Tag: ScopeGlobal}

// OrGlobal maps the zero scope to GLOBAL. Callers may omit the requested
// scope entirely; resolution then considers only GLOBAL overrides and the
// default.
func (s Scope) OrGlobal() Scope {
	if s.Tag == "" && s.ID == "" {
		return GlobalScope
	}
	return s
}

func (s Scope) IsWildcard() bool {
	return s.Tag != ScopeGlobal && s.ID == ""
}

func (s Scope) Validate() error {
	if !s.Tag.Valid() {
		return &InvalidScopeError{Tag: s.Tag, ID: s.ID, Reason: "unknown scope tag"}
	}
	if s.Tag == ScopeGlobal && s.ID != "" {
		return &InvalidScopeError{Tag: s.Tag, ID: s.ID, Reason: "GLOBAL scope must not carry an identifier"}
	}
	return nil
}

type InvalidScopeError struct {
	Tag    ScopeTag
	ID     string
	Reason string
}

func (e *InvalidScopeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid scope %s: %s", e.Tag, e.Reason)
	}
	return fmt.Sprintf("invalid scope %s:%s: %s", e.Tag, e.ID, e.Reason)
}

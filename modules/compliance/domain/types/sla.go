package types

import (
	"fmt"
	"time"
)

// UrgencyTier determines a job's SLA budget.
type UrgencyTier string

const (
	TierLow       UrgencyTier = "LOW"
	TierNormal    UrgencyTier = "NORMAL"
	TierHigh      UrgencyTier = "HIGH"
	TierEmergency UrgencyTier = "EMERGENCY"
)

func (t UrgencyTier) Valid() bool {
	switch t {
	case TierLow, TierNormal, TierHigh, TierEmergency:
		return true
	}
	return false
}

type SlaStatus string

const (
	SlaOnTrack  SlaStatus = "ON_TRACK"
	SlaWarning  SlaStatus = "WARNING"
	SlaBreached SlaStatus = "BREACHED"
)

// SlaSubject is the slice of a job the monitor needs: when its clock
// started and which tier governs it. The monitor never stores subjects.
type SlaSubject struct {
	StartedAt time.Time
	Tier      UrgencyTier
}

// SlaEvaluation is a point-in-time classification, recomputed on demand.
// PercentRemaining may be negative once breached; it is display-only and
// never suppresses the BREACHED status. BreachMinutes is zero unless
// Status is BREACHED.
type SlaEvaluation struct {
	Status           SlaStatus
	PercentRemaining int
	BreachMinutes    int
	Tier             UrgencyTier
	TotalMinutes     int
	Degraded         bool
}

// InvalidSlaConfigError reports an unusable SLA configuration, such as a
// zero or negative total-allowed-duration. Never treated as "already
// breached".
type InvalidSlaConfigError struct {
	Tier   UrgencyTier
	Reason string
}

func (e *InvalidSlaConfigError) Error() string {
	return fmt.Sprintf("invalid sla configuration for tier %s: %s", e.Tier, e.Reason)
}

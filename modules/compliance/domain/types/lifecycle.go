package types

import "fmt"

// EntityType names the dispatch-domain entities with lifecycle tables.
type EntityType string

const (
	EntityJob             EntityType = "job"
	EntityBooking         EntityType = "booking"
	EntityDispatchAttempt EntityType = "dispatch_attempt"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityJob, EntityBooking, EntityDispatchAttempt:
		return true
	}
	return false
}

type JobStatus string

const (
	JobDraft      JobStatus = "DRAFT"
	JobDispatched JobStatus = "DISPATCHED"
	JobAccepted   JobStatus = "ACCEPTED"
	JobScheduled  JobStatus = "SCHEDULED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobCancelled  JobStatus = "CANCELLED"
)

type BookingStatus string

const (
	BookingPendingConfirmation BookingStatus = "PENDING_CONFIRMATION"
	BookingConfirmed           BookingStatus = "CONFIRMED"
	BookingCompleted           BookingStatus = "COMPLETED"
	BookingCancelled           BookingStatus = "CANCELLED"
	BookingNoShow              BookingStatus = "NO_SHOW"
)

type DispatchAttemptStatus string

const (
	AttemptPending   DispatchAttemptStatus = "PENDING"
	AttemptAccepted  DispatchAttemptStatus = "ACCEPTED"
	AttemptDeclined  DispatchAttemptStatus = "DECLINED"
	AttemptTimeout   DispatchAttemptStatus = "TIMEOUT"
	AttemptCancelled DispatchAttemptStatus = "CANCELLED"
)

// InvalidTransitionError reports an illegal lifecycle move, carrying the
// entity type and both statuses for diagnostics.
type InvalidTransitionError struct {
	Entity EntityType
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s %s -> %s", e.Entity, e.From, e.To)
}

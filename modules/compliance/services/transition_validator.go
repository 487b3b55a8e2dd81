package services

import "github.com/mvoka/fieldline/modules/compliance/domain/types"

// Lifecycle legality is a domain invariant, not configuration: the tables
// are fixed at compile time and terminal statuses map to empty sets.

var jobTransitions = map[types.JobStatus][]types.JobStatus{
	types.JobDraft:      {types.JobDispatched, types.JobCancelled},
	types.JobDispatched: {types.JobAccepted, types.JobCancelled},
	types.JobAccepted:   {types.JobScheduled, types.JobCancelled},
	types.JobScheduled:  {types.JobInProgress, types.JobCancelled},
	types.JobInProgress: {types.JobCompleted, types.JobCancelled},
	types.JobCompleted:  {},
	types.JobCancelled:  {},
}

var bookingTransitions = map[types.BookingStatus][]types.BookingStatus{
	types.BookingPendingConfirmation: {types.BookingConfirmed, types.BookingCancelled},
	types.BookingConfirmed:           {types.BookingCompleted, types.BookingCancelled, types.BookingNoShow},
	types.BookingCompleted:           {},
	types.BookingCancelled:           {},
	types.BookingNoShow:              {},
}

var attemptTransitions = map[types.DispatchAttemptStatus][]types.DispatchAttemptStatus{
	types.AttemptPending:   {types.AttemptAccepted, types.AttemptDeclined, types.AttemptTimeout, types.AttemptCancelled},
	types.AttemptAccepted:  {},
	types.AttemptDeclined:  {},
	types.AttemptTimeout:   {},
	types.AttemptCancelled: {},
}

func ValidateJobTransition(from, to types.JobStatus) error {
	return validateEdge(types.EntityJob, jobTransitions, from, to)
}

func ValidateBookingTransition(from, to types.BookingStatus) error {
	return validateEdge(types.EntityBooking, bookingTransitions, from, to)
}

func ValidateDispatchAttemptTransition(from, to types.DispatchAttemptStatus) error {
	return validateEdge(types.EntityDispatchAttempt, attemptTransitions, from, to)
}

// ValidateTransition is the string-typed entry for boundary callers. It
// succeeds iff to is directly reachable from from in the entity's table;
// unknown entities and statuses fail the same way illegal edges do.
func ValidateTransition(entity types.EntityType, from, to string) error {
	switch entity {
	case types.EntityJob:
		return ValidateJobTransition(types.JobStatus(from), types.JobStatus(to))
	case types.EntityBooking:
		return ValidateBookingTransition(types.BookingStatus(from), types.BookingStatus(to))
	case types.EntityDispatchAttempt:
		return ValidateDispatchAttemptTransition(types.DispatchAttemptStatus(from), types.DispatchAttemptStatus(to))
	default:
		return &types.InvalidTransitionError{Entity: entity, From: from, To: to}
	}
}

func validateEdge[S ~string](entity types.EntityType, table map[S][]S, from, to S) error {
	targets, ok := table[from]
	if !ok {
		return &types.InvalidTransitionError{Entity: entity, From: string(from), To: string(to)}
	}
	for _, t := range targets {
		if t == to {
			return nil
		}
	}
	return &types.InvalidTransitionError{Entity: entity, From: string(from), To: string(to)}
}

// TerminalStatuses lists the statuses with no outgoing edges for an entity.
func TerminalStatuses(entity types.EntityType) []string {
	var out []string
	switch entity {
	case types.EntityJob:
		for s, targets := range jobTransitions {
			if len(targets) == 0 {
				out = append(out, string(s))
			}
		}
	case types.EntityBooking:
		for s, targets := range bookingTransitions {
			if len(targets) == 0 {
				out = append(out, string(s))
			}
		}
	case types.EntityDispatchAttempt:
		for s, targets := range attemptTransitions {
			if len(targets) == 0 {
				out = append(out, string(s))
			}
		}
	}
	return out
}

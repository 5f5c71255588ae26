/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "time"

// Strategy names.
const (
	StrategyFixedWindowBonus = "fixed_window_bonus"
	StrategyContinuousRefill = "continuous_refill"
)

// Decision is the outcome of a single quota check.
type Decision struct {
	Allowed bool

	// Remaining is the number of tokens left after the decision.
	Remaining int

	// RetryAfter is set for denied decisions and estimates when the next request may be allowed.
	RetryAfter time.Duration

	// BonusGranted is true when the decision opened a new window that includes the burst bonus.
	BonusGranted bool
}

// Strategy owns the accounting arithmetic of a quota.
//
// Decide is called with the caller's record (a zero Record if found is false) and mutates it in place.
// The Limiter guarantees that Decide is never called concurrently for the same record.
//
// RetainsIdleRecord reports whether forgetting the record of an idle caller could change
// a later decision for this caller. Stores that drop idle records must keep such records.
type Strategy interface {
	Name() string
	Decide(rec *Record, found bool, now time.Time) Decision
	RetainsIdleRecord(rec Record) bool
}

/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "time"

// Clock returns the current time.
type Clock func() time.Time

// Record is the per-caller accounting state.
// A missing record is equivalent to a record with zero tokens and an already expired window.
type Record struct {
	// Tokens is the number of remaining permits. It is never negative.
	Tokens int

	// WindowEnd is the instant after which a fixed-window record is stale.
	WindowEnd time.Time

	// LastRefillAt is the instant up to which continuous refill has been accounted,
	// including the fractional progress towards the next token.
	LastRefillAt time.Time
}

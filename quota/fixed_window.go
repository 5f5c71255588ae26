/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "time"

// FixedWindowBonus is a Strategy with a fixed window per caller and an optional burst bonus.
//
// A window is renewed when a request comes after its end. The renewed window holds
// maxTokensPerWindow tokens, plus burstBonusTokens if the previous record of the caller
// still had at least one unused token. The very first window of a caller never includes the bonus.
type FixedWindowBonus struct {
	maxTokens int
	window    time.Duration
	bonus     int
}

var _ Strategy = (*FixedWindowBonus)(nil)

// NewFixedWindowBonus creates a new FixedWindowBonus strategy.
func NewFixedWindowBonus(maxTokensPerWindow int, windowLength time.Duration, burstBonusTokens int) (*FixedWindowBonus, error) {
	if maxTokensPerWindow <= 0 {
		return nil, newConfigurationError("maxTokensPerWindow", "must be positive, got %d", maxTokensPerWindow)
	}
	if windowLength <= 0 {
		return nil, newConfigurationError("windowLength", "must be positive, got %s", windowLength)
	}
	if burstBonusTokens < 0 {
		return nil, newConfigurationError("burstBonusTokens", "must not be negative, got %d", burstBonusTokens)
	}
	return &FixedWindowBonus{maxTokens: maxTokensPerWindow, window: windowLength, bonus: burstBonusTokens}, nil
}

// Name returns the strategy name.
func (s *FixedWindowBonus) Name() string {
	return StrategyFixedWindowBonus
}

// MaxTokensPerWindow returns the number of tokens in a window without the bonus.
func (s *FixedWindowBonus) MaxTokensPerWindow() int {
	return s.maxTokens
}

// WindowLength returns the length of a window.
func (s *FixedWindowBonus) WindowLength() time.Duration {
	return s.window
}

// BurstBonusTokens returns the number of extra tokens granted for an under-used previous window.
func (s *FixedWindowBonus) BurstBonusTokens() int {
	return s.bonus
}

// RetainsIdleRecord reports whether the record still carries the bonus signal.
// Other records are equivalent to a missing one once their window is over.
func (s *FixedWindowBonus) RetainsIdleRecord(rec Record) bool {
	return s.bonus > 0 && rec.Tokens > 0
}

// Decide renews the window if needed and consumes one token.
func (s *FixedWindowBonus) Decide(rec *Record, found bool, now time.Time) Decision {
	var bonusGranted bool
	if !found || rec.WindowEnd.Before(now) {
		// Only the immediately preceding record is taken into account.
		eligible := found && rec.Tokens > 0
		rec.Tokens = s.maxTokens
		if eligible && s.bonus > 0 {
			rec.Tokens += s.bonus
			bonusGranted = true
		}
		rec.WindowEnd = now.Add(s.window)
	}

	if rec.Tokens > 0 {
		rec.Tokens--
		return Decision{Allowed: true, Remaining: rec.Tokens, BonusGranted: bonusGranted}
	}

	// The window expires once now is strictly after WindowEnd.
	retryAfter := rec.WindowEnd.Sub(now) + time.Nanosecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

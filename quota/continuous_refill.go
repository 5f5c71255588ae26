/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import "time"

// ContinuousRefill is a Strategy that keeps a token bucket per caller.
// Tokens are granted at ratePerMinute and the bucket never holds more than burstLimit tokens.
type ContinuousRefill struct {
	policy    refillPolicy
	startFull bool
}

var _ Strategy = (*ContinuousRefill)(nil)

// ContinuousRefillOpts represents options for ContinuousRefill.
type ContinuousRefillOpts struct {
	// StartFull makes a new caller start with a full bucket instead of an empty one.
	StartFull bool
}

// NewContinuousRefill creates a new ContinuousRefill strategy. New callers start with an empty bucket.
func NewContinuousRefill(ratePerMinute float64, burstLimit int) (*ContinuousRefill, error) {
	return NewContinuousRefillWithOpts(ratePerMinute, burstLimit, ContinuousRefillOpts{})
}

// NewContinuousRefillWithOpts creates a new ContinuousRefill strategy with the provided options.
func NewContinuousRefillWithOpts(ratePerMinute float64, burstLimit int, opts ContinuousRefillOpts) (*ContinuousRefill, error) {
	policy, err := newRefillPolicy(ratePerMinute, burstLimit)
	if err != nil {
		return nil, err
	}
	return &ContinuousRefill{policy: policy, startFull: opts.StartFull}, nil
}

// Name returns the strategy name.
func (s *ContinuousRefill) Name() string {
	return StrategyContinuousRefill
}

// RatePerMinute returns the refill rate.
func (s *ContinuousRefill) RatePerMinute() float64 {
	return s.policy.ratePerMinute
}

// BurstLimit returns the bucket capacity.
func (s *ContinuousRefill) BurstLimit() int {
	return s.policy.burstLimit
}

// StartsFull reports whether new callers start with a full bucket.
func (s *ContinuousRefill) StartsFull() bool {
	return s.startFull
}

// RetainsIdleRecord reports whether the record must be kept for an idle caller.
// An idle bucket refills completely, which equals a new caller only if new callers start full.
func (s *ContinuousRefill) RetainsIdleRecord(Record) bool {
	return !s.startFull
}

// Decide refills the caller's bucket up to now and consumes one token if any.
func (s *ContinuousRefill) Decide(rec *Record, found bool, now time.Time) Decision {
	if !found {
		rec.Tokens = 0
		if s.startFull {
			rec.Tokens = s.policy.burstLimit
		}
		rec.LastRefillAt = now
	}

	s.policy.refill(&rec.Tokens, &rec.LastRefillAt, now)

	if rec.Tokens > 0 {
		rec.Tokens--
		return Decision{Allowed: true, Remaining: rec.Tokens}
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: s.policy.nextTokenIn(rec.LastRefillAt, now)}
}

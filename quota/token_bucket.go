/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"math"
	"time"
)

// refillPolicy holds the continuous refill arithmetic shared by TokenBucket and ContinuousRefill.
type refillPolicy struct {
	ratePerMinute float64
	period        time.Duration
	burstLimit    int
}

func newRefillPolicy(ratePerMinute float64, burstLimit int) (refillPolicy, error) {
	if math.IsNaN(ratePerMinute) || math.IsInf(ratePerMinute, 0) || ratePerMinute <= 0 {
		return refillPolicy{}, newConfigurationError("ratePerMinute", "must be a positive finite number, got %v", ratePerMinute)
	}
	period := time.Duration(float64(time.Minute) / ratePerMinute)
	if period <= 0 {
		return refillPolicy{}, newConfigurationError("ratePerMinute", "%v is too high, refill period is less than 1ns", ratePerMinute)
	}
	if burstLimit <= 0 {
		return refillPolicy{}, newConfigurationError("burstLimit", "must be positive, got %d", burstLimit)
	}
	return refillPolicy{ratePerMinute: ratePerMinute, period: period, burstLimit: burstLimit}, nil
}

// refill grants whole tokens for the time elapsed since lastRefillAt and carries the remainder over.
// A negative elapsed time is a no-op.
func (p refillPolicy) refill(tokens *int, lastRefillAt *time.Time, now time.Time) {
	elapsed := now.Sub(*lastRefillAt)
	if elapsed < 0 {
		return
	}
	if grant := int64(elapsed / p.period); grant > 0 {
		room := int64(p.burstLimit - *tokens)
		if grant > room {
			grant = room
		}
		if grant > 0 {
			*tokens += int(grant)
		}
	}
	*lastRefillAt = now.Add(-(elapsed % p.period))
}

// nextTokenIn returns the time left until the next whole token is granted.
func (p refillPolicy) nextTokenIn(lastRefillAt, now time.Time) time.Duration {
	if d := lastRefillAt.Add(p.period).Sub(now); d > 0 {
		return d
	}
	return 0
}

// TokenBucket is a standalone continuously refilled bucket for a single owner.
// It is not safe for concurrent use. Use Limiter with ContinuousRefill to limit many callers.
type TokenBucket struct {
	policy       refillPolicy
	tokens       int
	lastRefillAt time.Time
	clock        Clock
}

// TokenBucketOpts represents options for TokenBucket.
type TokenBucketOpts struct {
	// Tokens is the initial number of tokens. Must be in [0, burstLimit].
	Tokens int

	// LastRefillAt is the instant the refill starts from. Defaults to Clock().
	LastRefillAt time.Time

	// Clock is used by Update and Allow when no explicit time is given. Defaults to time.Now.
	Clock Clock
}

// NewTokenBucket creates an empty TokenBucket that starts refilling now.
func NewTokenBucket(ratePerMinute float64, burstLimit int) (*TokenBucket, error) {
	return NewTokenBucketWithOpts(ratePerMinute, burstLimit, TokenBucketOpts{})
}

// NewTokenBucketWithOpts creates a new TokenBucket with the provided options.
func NewTokenBucketWithOpts(ratePerMinute float64, burstLimit int, opts TokenBucketOpts) (*TokenBucket, error) {
	policy, err := newRefillPolicy(ratePerMinute, burstLimit)
	if err != nil {
		return nil, err
	}
	if opts.Tokens < 0 || opts.Tokens > burstLimit {
		return nil, newConfigurationError("tokens", "must be in [0, %d], got %d", burstLimit, opts.Tokens)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LastRefillAt.IsZero() {
		opts.LastRefillAt = opts.Clock()
	}
	tb := &TokenBucket{policy: policy, tokens: opts.Tokens, lastRefillAt: opts.LastRefillAt, clock: opts.Clock}
	tb.UpdateAt(opts.LastRefillAt)
	return tb, nil
}

// Tokens returns the number of tokens currently held (without refilling).
func (tb *TokenBucket) Tokens() int {
	return tb.tokens
}

// LastRefillAt returns the instant up to which refill has been accounted.
func (tb *TokenBucket) LastRefillAt() time.Time {
	return tb.lastRefillAt
}

// Update refills the bucket up to the current time.
func (tb *TokenBucket) Update() {
	tb.UpdateAt(tb.clock())
}

// UpdateAt refills the bucket up to currentTime.
// If currentTime is before the last refill, nothing happens.
func (tb *TokenBucket) UpdateAt(currentTime time.Time) {
	tb.policy.refill(&tb.tokens, &tb.lastRefillAt, currentTime)
}

// Allow refills the bucket up to the current time and consumes one token if any.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowAt(tb.clock())
}

// AllowAt refills the bucket up to currentTime and consumes one token if any.
func (tb *TokenBucket) AllowAt(currentTime time.Time) bool {
	tb.UpdateAt(currentTime)
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

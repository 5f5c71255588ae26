/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package quota provides a per-caller request limiter.
//
// Limiter keeps one Record per caller identity in a Store and delegates the accounting
// to a Strategy. Two strategies are available:
//
//   - FixedWindowBonus: a fixed window per caller, renewed lazily on expiry. A caller that left
//     at least one token unused in its previous window gets extra burst bonus tokens in the next one.
//   - ContinuousRefill: a token bucket refilled continuously at a per-minute rate and capped at a burst limit.
//     The fractional part of the refill period is carried over, so the refill rate is exact
//     regardless of how often the bucket is updated.
//
// All time-dependent operations have a variant that accepts an explicit timestamp.
// The others use the Clock passed to the Limiter (time.Now by default).
package quota

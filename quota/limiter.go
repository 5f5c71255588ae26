/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-quota/log"
)

// Limiter decides whether a caller is allowed to make a request.
// It is safe for concurrent use: the whole decision for one caller runs atomically inside Store.Update.
type Limiter struct {
	strategy Strategy
	store    Store
	clock    Clock
	metrics  MetricsCollector
	logger   log.FieldLogger
}

// LimiterOpts represents options for Limiter.
type LimiterOpts struct {
	// Store keeps caller records. Defaults to an unbounded MapStore.
	Store Store

	// Clock returns the current time for decisions without an explicit timestamp. Defaults to time.Now.
	Clock Clock

	// MetricsCollector collects decisions. Metrics are disabled if nil.
	MetricsCollector MetricsCollector

	// Logger is used for logging denials and misuse. Logging is disabled if nil.
	Logger log.FieldLogger
}

// New creates a new Limiter with the given strategy and default options.
func New(strategy Strategy) (*Limiter, error) {
	return NewWithOpts(strategy, LimiterOpts{})
}

// NewWithOpts creates a new Limiter with the given strategy and options.
func NewWithOpts(strategy Strategy, opts LimiterOpts) (*Limiter, error) {
	if strategy == nil {
		return nil, fmt.Errorf("strategy must be specified")
	}
	if opts.Store == nil {
		opts.Store = NewMapStore()
	}
	if lru, ok := opts.Store.(*LRUStore); ok && lru.Strategy() != nil && lru.Strategy() != strategy {
		return nil, fmt.Errorf("store is created for another strategy (%s)", lru.Strategy().Name())
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &Limiter{
		strategy: strategy,
		store:    opts.Store,
		clock:    opts.Clock,
		metrics:  opts.MetricsCollector,
		logger:   opts.Logger.With(log.String("strategy", strategy.Name())),
	}, nil
}

// Strategy returns the strategy of the limiter.
func (l *Limiter) Strategy() Strategy {
	return l.strategy
}

// Store returns the store of caller records.
func (l *Limiter) Store() Store {
	return l.store
}

// CheckIfAllowed reports whether the caller may make a request now and consumes a token if so.
// An empty caller id is always denied.
func (l *Limiter) CheckIfAllowed(callerID string) bool {
	return l.CheckIfAllowedAt(callerID, l.clock())
}

// CheckIfAllowedAt is like CheckIfAllowed but uses the given time instead of the clock.
func (l *Limiter) CheckIfAllowedAt(callerID string, now time.Time) bool {
	d, err := l.DecideAt(callerID, now)
	return err == nil && d.Allowed
}

// Decide makes a decision for the caller at the current time.
func (l *Limiter) Decide(callerID string) (Decision, error) {
	return l.DecideAt(callerID, l.clock())
}

// DecideAt makes a decision for the caller at the given time.
// The only possible error is ErrEmptyCallerID.
func (l *Limiter) DecideAt(callerID string, now time.Time) (Decision, error) {
	if callerID == "" {
		l.logger.Warn("quota check for empty caller id, request is denied")
		return Decision{}, ErrEmptyCallerID
	}

	var d Decision
	l.store.Update(callerID, func(rec *Record, found bool) bool {
		d = l.strategy.Decide(rec, found, now)
		return true
	})

	l.metrics.IncDecisions(l.strategy.Name(), d.Allowed)
	if d.BonusGranted {
		l.metrics.IncBonusGrants(l.strategy.Name())
	}
	if !d.Allowed {
		l.logger.Debug("quota exceeded", log.String("caller", callerID), log.Duration("retry_after", d.RetryAfter))
	}
	return d, nil
}

// Allow implements the request-handling tier contract.
// It reports whether the request identified by key is allowed and, if not, when it may be retried.
func (l *Limiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	d, err := l.Decide(key)
	if err != nil {
		return false, 0, err
	}
	return d.Allowed, d.RetryAfter, nil
}

// Peek returns a copy of the caller's record without changing it.
func (l *Limiter) Peek(callerID string) (Record, bool) {
	return l.store.Get(callerID)
}

// Reset forgets the caller's record, so the next request starts from scratch (without the bonus).
func (l *Limiter) Reset(callerID string) bool {
	return l.store.Delete(callerID)
}

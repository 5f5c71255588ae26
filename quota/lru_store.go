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
	"github.com/acronis/go-quota/lrucache"
)

// LRUStore is a bounded in-memory Store.
// When MaxKeys callers are tracked, the least recently used record is evicted.
// Records that were not touched for IdleTTL are treated as missing and may be swept by RemoveExpired,
// except those the strategy retains: they stay until they are evicted or deleted.
type LRUStore struct {
	cache    *lrucache.LRUCache[string, Record]
	idleTTL  time.Duration
	strategy Strategy
}

var _ Store = (*LRUStore)(nil)

// LRUStoreOpts represents options for LRUStore.
type LRUStoreOpts struct {
	// IdleTTL is the time after the last update when a record expires. Zero means no expiration.
	// It requires Strategy.
	IdleTTL time.Duration

	// Strategy is the strategy whose records are stored. Records for which Strategy.RetainsIdleRecord
	// returns true never expire. A Limiter refuses a store that was created for another strategy.
	Strategy Strategy

	// Clock is used for TTL calculations. Defaults to time.Now.
	Clock Clock

	// MetricsCollector collects cache metrics. Metrics are disabled if nil.
	MetricsCollector lrucache.MetricsCollector
}

// NewLRUStore creates a new LRUStore that keeps at most maxKeys records.
func NewLRUStore(maxKeys int) (*LRUStore, error) {
	return NewLRUStoreWithOpts(maxKeys, LRUStoreOpts{})
}

// NewLRUStoreWithOpts creates a new LRUStore with the provided options.
func NewLRUStoreWithOpts(maxKeys int, opts LRUStoreOpts) (*LRUStore, error) {
	if maxKeys <= 0 {
		return nil, newConfigurationError("maxKeys", "must be positive, got %d", maxKeys)
	}
	if opts.IdleTTL < 0 {
		return nil, newConfigurationError("idleTTL", "must not be negative, got %s", opts.IdleTTL)
	}
	if opts.IdleTTL > 0 {
		if opts.Strategy == nil {
			return nil, newConfigurationError("strategy", "must be specified when idleTTL is set")
		}
		if err := validateIdleTTL(opts.Strategy, opts.IdleTTL); err != nil {
			return nil, newConfigurationError("idleTTL", "%s", err.Error())
		}
	}
	cache, err := lrucache.NewWithOpts[string, Record](maxKeys, opts.MetricsCollector, lrucache.Options{
		DefaultTTL: opts.IdleTTL,
		Now:        opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("new lru cache: %w", err)
	}
	return &LRUStore{cache: cache, idleTTL: opts.IdleTTL, strategy: opts.Strategy}, nil
}

// validateIdleTTL makes sure an expired record is equivalent to a missing one.
// A fixed-window record without the bonus signal must outlive its window,
// and a bucket must refill completely and equal the bucket of a new caller.
func validateIdleTTL(strategy Strategy, idleTTL time.Duration) error {
	if idleTTL == 0 {
		return nil
	}
	switch s := strategy.(type) {
	case *FixedWindowBonus:
		if idleTTL <= s.WindowLength() {
			return fmt.Errorf("should be greater than the window length (%s)", s.WindowLength())
		}
	case *ContinuousRefill:
		if !s.StartsFull() {
			return fmt.Errorf("is supported only when new callers start with a full bucket")
		}
		if fill := s.policy.period * time.Duration(s.BurstLimit()); idleTTL < fill {
			return fmt.Errorf("should be >= the time to refill the whole bucket (%s)", fill)
		}
	}
	return nil
}

// Get returns a copy of the record stored for the key.
func (s *LRUStore) Get(key string) (Record, bool) {
	return s.cache.Get(key)
}

// Update atomically reads, modifies and stores the record for the key.
func (s *LRUStore) Update(key string, fn func(rec *Record, found bool) bool) {
	s.cache.ComputeWithTTL(key, func(rec Record, exists bool) (Record, time.Duration, bool) {
		keep := fn(&rec, exists)
		return rec, s.ttlFor(rec), keep
	})
}

func (s *LRUStore) ttlFor(rec Record) time.Duration {
	if s.idleTTL == 0 || s.strategy.RetainsIdleRecord(rec) {
		return 0
	}
	return s.idleTTL
}

// Strategy returns the strategy the store was created for, or nil.
func (s *LRUStore) Strategy() Strategy {
	return s.strategy
}

// Delete removes the record for the key.
func (s *LRUStore) Delete(key string) bool {
	return s.cache.Remove(key)
}

// Len returns the number of stored records, including expired ones that were not swept yet.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// RemoveExpired removes all idle records and returns their number.
func (s *LRUStore) RemoveExpired() int {
	return s.cache.RemoveExpired()
}

// RunPeriodicCleanup calls RemoveExpired every interval until ctx is done.
func (s *LRUStore) RunPeriodicCleanup(ctx context.Context, interval time.Duration, logger log.FieldLogger) {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.RemoveExpired(); removed > 0 {
				logger.Debug("idle caller records removed", log.Int("removed", removed), log.Int("left", s.Len()))
			}
		}
	}
}

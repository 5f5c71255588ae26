/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestNewTokenBucket(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		burst     int
		opts      TokenBucketOpts
		wantParam string
	}{
		{name: "zero rate", rate: 0, burst: 1, wantParam: "ratePerMinute"},
		{name: "negative rate", rate: -5, burst: 1, wantParam: "ratePerMinute"},
		{name: "NaN rate", rate: math.NaN(), burst: 1, wantParam: "ratePerMinute"},
		{name: "infinite rate", rate: math.Inf(1), burst: 1, wantParam: "ratePerMinute"},
		{name: "rate with sub-nanosecond period", rate: 1e12, burst: 1, wantParam: "ratePerMinute"},
		{name: "zero burst", rate: 60, burst: 0, wantParam: "burstLimit"},
		{name: "negative initial tokens", rate: 60, burst: 5, opts: TokenBucketOpts{Tokens: -1}, wantParam: "tokens"},
		{name: "initial tokens above burst", rate: 60, burst: 5, opts: TokenBucketOpts{Tokens: 6}, wantParam: "tokens"},
		{name: "valid", rate: 60, burst: 5, opts: TokenBucketOpts{Tokens: 5}},
		{name: "valid, fractional rate", rate: 0.5, burst: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb, err := NewTokenBucketWithOpts(tt.rate, tt.burst, tt.opts)
			if tt.wantParam != "" {
				var cfgErr *ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
				require.Equal(t, tt.wantParam, cfgErr.Param)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.opts.Tokens, tb.Tokens())
		})
	}
}

type TokenBucketTestSuite struct {
	suite.Suite
}

func TestTokenBucket(t *testing.T) {
	suite.Run(t, new(TokenBucketTestSuite))
}

func (ts *TokenBucketTestSuite) newBucket(rate float64, burst, tokens int) *TokenBucket {
	tb, err := NewTokenBucketWithOpts(rate, burst, TokenBucketOpts{Tokens: tokens, LastRefillAt: testT0})
	ts.Require().NoError(err)
	return tb
}

func (ts *TokenBucketTestSuite) TestDefaults() {
	clock := newFakeClock(testT0)
	tb, err := NewTokenBucketWithOpts(60, 3, TokenBucketOpts{Clock: clock.Now})
	ts.Require().NoError(err)
	ts.Require().Equal(0, tb.Tokens())
	ts.Require().Equal(testT0, tb.LastRefillAt())

	ts.Require().False(tb.Allow())
	clock.Advance(time.Second)
	ts.Require().True(tb.Allow())
	ts.Require().False(tb.Allow())

	clock.Advance(2500 * time.Millisecond)
	tb.Update()
	ts.Require().Equal(2, tb.Tokens())
	ts.Require().Equal(testT0.Add(3*time.Second), tb.LastRefillAt())
}

func (ts *TokenBucketTestSuite) TestUpdateGrantsWholeTokensAndCarriesRemainder() {
	tb := ts.newBucket(60, 10, 0) // one token per second

	tb.UpdateAt(testT0.Add(2500 * time.Millisecond))
	ts.Require().Equal(2, tb.Tokens())
	ts.Require().Equal(testT0.Add(2*time.Second), tb.LastRefillAt())

	tb.UpdateAt(testT0.Add(2900 * time.Millisecond))
	ts.Require().Equal(2, tb.Tokens())
	ts.Require().Equal(testT0.Add(2*time.Second), tb.LastRefillAt())

	tb.UpdateAt(testT0.Add(3000 * time.Millisecond))
	ts.Require().Equal(3, tb.Tokens())
	ts.Require().Equal(testT0.Add(3*time.Second), tb.LastRefillAt())
}

func (ts *TokenBucketTestSuite) TestBurstLimitCapsTokens() {
	tb := ts.newBucket(60, 3, 1)

	tb.UpdateAt(testT0.Add(time.Hour + 400*time.Millisecond))
	ts.Require().Equal(3, tb.Tokens())
	// Time spent with a full bucket is not accrued.
	ts.Require().Equal(testT0.Add(time.Hour), tb.LastRefillAt())

	ts.Require().True(tb.AllowAt(testT0.Add(time.Hour + 500*time.Millisecond)))
	ts.Require().Equal(2, tb.Tokens())
	ts.Require().True(tb.AllowAt(testT0.Add(time.Hour + time.Second)))
	ts.Require().Equal(2, tb.Tokens())
}

func (ts *TokenBucketTestSuite) TestBackwardClockIsNoop() {
	tb := ts.newBucket(60, 5, 0)
	tb.UpdateAt(testT0.Add(1500 * time.Millisecond))
	ts.Require().Equal(1, tb.Tokens())
	last := tb.LastRefillAt()

	tb.UpdateAt(testT0)
	ts.Require().Equal(1, tb.Tokens())
	ts.Require().Equal(last, tb.LastRefillAt())

	ts.Require().True(tb.AllowAt(testT0.Add(-time.Minute)))
	ts.Require().False(tb.AllowAt(testT0.Add(-time.Minute)))
	ts.Require().Equal(last, tb.LastRefillAt())
}

func (ts *TokenBucketTestSuite) TestRefillIsExactRegardlessOfCallFrequency() {
	rnd := rand.New(rand.NewSource(42))
	for _, rate := range []float64{1, 7, 60, 333.3, 0.25} {
		total := time.Duration(rnd.Int63n(int64(time.Hour)))

		once := ts.newBucket(rate, math.MaxInt32, 0)
		once.UpdateAt(testT0.Add(total))

		often := ts.newBucket(rate, math.MaxInt32, 0)
		var elapsed time.Duration
		for elapsed < total {
			step := time.Duration(rnd.Int63n(int64(3 * time.Second)))
			if elapsed+step > total {
				step = total - elapsed
			}
			elapsed += step
			often.UpdateAt(testT0.Add(elapsed))
		}

		ts.Require().Equal(once.Tokens(), often.Tokens(), "rate %v, total %s", rate, total)
		ts.Require().Equal(once.LastRefillAt(), often.LastRefillAt(), "rate %v, total %s", rate, total)
	}
}

func (ts *TokenBucketTestSuite) TestAllowConsumesOneToken() {
	tb := ts.newBucket(30, 2, 2) // one token per two seconds

	ts.Require().True(tb.AllowAt(testT0))
	ts.Require().True(tb.AllowAt(testT0))
	ts.Require().False(tb.AllowAt(testT0.Add(1999 * time.Millisecond)))
	ts.Require().Equal(0, tb.Tokens())
	ts.Require().True(tb.AllowAt(testT0.Add(2 * time.Second)))
	ts.Require().False(tb.AllowAt(testT0.Add(2 * time.Second)))
}

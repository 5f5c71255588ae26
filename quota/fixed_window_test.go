/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var testT0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func TestNewFixedWindowBonus(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		window    time.Duration
		bonus     int
		wantParam string
	}{
		{name: "zero max tokens", maxTokens: 0, window: time.Second, wantParam: "maxTokensPerWindow"},
		{name: "negative max tokens", maxTokens: -1, window: time.Second, wantParam: "maxTokensPerWindow"},
		{name: "zero window", maxTokens: 1, window: 0, wantParam: "windowLength"},
		{name: "negative window", maxTokens: 1, window: -time.Second, wantParam: "windowLength"},
		{name: "negative bonus", maxTokens: 1, window: time.Second, bonus: -1, wantParam: "burstBonusTokens"},
		{name: "valid, no bonus", maxTokens: 1, window: time.Second},
		{name: "valid, with bonus", maxTokens: 2, window: 5 * time.Second, bonus: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewFixedWindowBonus(tt.maxTokens, tt.window, tt.bonus)
			if tt.wantParam != "" {
				var cfgErr *ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				require.Equal(t, tt.wantParam, cfgErr.Param)
				require.Nil(t, s)
				return
			}
			require.NoError(t, err)
			require.Equal(t, StrategyFixedWindowBonus, s.Name())
			require.Equal(t, tt.maxTokens, s.MaxTokensPerWindow())
			require.Equal(t, tt.window, s.WindowLength())
			require.Equal(t, tt.bonus, s.BurstBonusTokens())
		})
	}
}

type FixedWindowBonusTestSuite struct {
	suite.Suite
}

func TestFixedWindowBonus(t *testing.T) {
	suite.Run(t, new(FixedWindowBonusTestSuite))
}

func (ts *FixedWindowBonusTestSuite) newLimiter(maxTokens int, window time.Duration, bonus int) *Limiter {
	s, err := NewFixedWindowBonus(maxTokens, window, bonus)
	ts.Require().NoError(err)
	l, err := New(s)
	ts.Require().NoError(err)
	return l
}

func (ts *FixedWindowBonusTestSuite) assertDecisions(l *Limiter, callerID string, now time.Time, want ...bool) {
	ts.T().Helper()
	for i, w := range want {
		ts.Require().Equal(w, l.CheckIfAllowedAt(callerID, now), "call #%d at %s", i+1, now.Sub(testT0))
	}
}

func (ts *FixedWindowBonusTestSuite) TestWindowRenewal() {
	l := ts.newLimiter(1, 10*time.Second, 0)

	ts.assertDecisions(l, "x", testT0, true, false)
	ts.assertDecisions(l, "x", testT0.Add(ms(11000)), true, false)
}

func (ts *FixedWindowBonusTestSuite) TestExhaustedWindowGivesNoBonus() {
	l := ts.newLimiter(2, 5*time.Second, 1)

	ts.assertDecisions(l, "x", testT0, true, true, false)
	ts.assertDecisions(l, "x", testT0.Add(ms(6000)), true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6001)), true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6002)), false)
}

func (ts *FixedWindowBonusTestSuite) TestUnderusedWindowGivesBonus() {
	l := ts.newLimiter(2, 5*time.Second, 1)

	ts.assertDecisions(l, "x", testT0, true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6000)), true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6001)), true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6002)), true)
	ts.assertDecisions(l, "x", testT0.Add(ms(6003)), false)

	rec, found := l.Peek("x")
	ts.Require().True(found)
	ts.Require().Equal(0, rec.Tokens)
	ts.Require().Equal(testT0.Add(ms(11000)), rec.WindowEnd)
}

func (ts *FixedWindowBonusTestSuite) TestFirstRequestNeverGetsBonus() {
	for _, bonus := range []int{0, 1, 5, 100} {
		l := ts.newLimiter(3, time.Second, bonus)
		d, err := l.DecideAt("fresh", testT0)
		ts.Require().NoError(err)
		ts.Require().True(d.Allowed)
		ts.Require().False(d.BonusGranted)
		ts.Require().Equal(2, d.Remaining, "bonus %d", bonus)
	}
}

func (ts *FixedWindowBonusTestSuite) TestBonusDoesNotAccumulate() {
	l := ts.newLimiter(2, time.Second, 3)

	ts.assertDecisions(l, "x", testT0, true)

	// Under-used again, but the bonus is computed from the fresh window size only.
	d, err := l.DecideAt("x", testT0.Add(2*time.Second))
	ts.Require().NoError(err)
	ts.Require().True(d.BonusGranted)
	ts.Require().Equal(4, d.Remaining)

	d, err = l.DecideAt("x", testT0.Add(4*time.Second))
	ts.Require().NoError(err)
	ts.Require().True(d.BonusGranted)
	ts.Require().Equal(4, d.Remaining)
}

func (ts *FixedWindowBonusTestSuite) TestLongIdleCallerKeepsBonusSignal() {
	l := ts.newLimiter(2, time.Second, 2)

	ts.assertDecisions(l, "x", testT0, true)

	// Many windows passed without requests, the last record still had an unused token.
	d, err := l.DecideAt("x", testT0.Add(10*time.Second))
	ts.Require().NoError(err)
	ts.Require().True(d.Allowed)
	ts.Require().True(d.BonusGranted)
	ts.Require().Equal(3, d.Remaining)
}

func (ts *FixedWindowBonusTestSuite) TestWindowExpiresStrictlyAfterEnd() {
	l := ts.newLimiter(1, 10*time.Second, 0)

	ts.assertDecisions(l, "x", testT0, true)
	ts.assertDecisions(l, "x", testT0.Add(10*time.Second), false)
	ts.assertDecisions(l, "x", testT0.Add(10*time.Second+time.Nanosecond), true)
}

func (ts *FixedWindowBonusTestSuite) TestRetryAfter() {
	l := ts.newLimiter(1, 10*time.Second, 0)

	ts.assertDecisions(l, "x", testT0, true)
	d, err := l.DecideAt("x", testT0.Add(4*time.Second))
	ts.Require().NoError(err)
	ts.Require().False(d.Allowed)
	ts.Require().Equal(6*time.Second+time.Nanosecond, d.RetryAfter)

	ts.assertDecisions(l, "x", testT0.Add(4*time.Second).Add(d.RetryAfter), true)
}

func (ts *FixedWindowBonusTestSuite) TestBackwardClockDoesNotReset() {
	l := ts.newLimiter(2, 10*time.Second, 0)

	ts.assertDecisions(l, "x", testT0, true, true, false)
	before, _ := l.Peek("x")

	ts.assertDecisions(l, "x", testT0.Add(-time.Hour), false)
	after, _ := l.Peek("x")
	ts.Require().Equal(before, after)
}

func (ts *FixedWindowBonusTestSuite) TestTokenFloor() {
	l := ts.newLimiter(3, time.Minute, 0)

	for i := 0; i < 10; i++ {
		l.CheckIfAllowedAt("x", testT0.Add(time.Duration(i)*time.Second))
		rec, found := l.Peek("x")
		ts.Require().True(found)
		ts.Require().GreaterOrEqual(rec.Tokens, 0)
		ts.Require().LessOrEqual(rec.Tokens, 3)
	}
	rec, _ := l.Peek("x")
	ts.Require().Equal(0, rec.Tokens)
}

func (ts *FixedWindowBonusTestSuite) TestCallersAreIndependent() {
	l := ts.newLimiter(1, 10*time.Second, 1)

	ts.assertDecisions(l, "a", testT0, true, false)
	recB, foundB := l.Peek("b")
	ts.Require().False(foundB)
	ts.Require().Equal(Record{}, recB)

	ts.assertDecisions(l, "b", testT0, true)
	recA, _ := l.Peek("a")
	ts.assertDecisions(l, "b", testT0, false)
	recA2, _ := l.Peek("a")
	ts.Require().Equal(recA, recA2)
}

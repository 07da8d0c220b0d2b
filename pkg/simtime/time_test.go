package simtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSentinels(t *testing.T) {
	assert.True(t, MaxTime.IsMax())
	assert.False(t, Invalid.IsValid())
	assert.True(t, Zero.IsValid())
	assert.Equal(t, "MAXTIME", MaxTime.String())
	assert.Equal(t, "INVALID", Invalid.String())
	assert.Equal(t, "2.5", Time(2.5).String())
}

func TestEqualWithinEpsilon(t *testing.T) {
	assert.True(t, Equal(1.0, 1.0+Epsilon/2))
	assert.False(t, Equal(1.0, 1.0+2*Epsilon))
	assert.True(t, Less(1.0, 1.1))
	assert.False(t, Less(1.0, 1.0+Epsilon/2))
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, MaxTime, Min())
	assert.Equal(t, Time(1), Min(3, 1, 2))
	assert.Equal(t, Time(3), Max(3, 1, 2))
	assert.Equal(t, Invalid, Max())
}

func TestCeil(t *testing.T) {
	tests := []struct {
		name                 string
		t, period, offset, w Time
	}{
		{"no period", 1.3, 0, 0, 1.3},
		{"on grid", 2.0, 1.0, 0, 2.0},
		{"between", 2.1, 1.0, 0, 3.0},
		{"with offset", 2.1, 1.0, 0.5, 2.5},
		{"before offset", 0.2, 1.0, 0.5, 0.5},
		{"near grid", 3.0 + Epsilon/10, 1.0, 0, 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.w), float64(Ceil(tt.t, tt.period, tt.offset)), 1e-12)
		})
	}
}

func TestDurationConversion(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Time(1.5).Duration())
	assert.Equal(t, Time(0.25), FromDuration(250*time.Millisecond))
}

func TestNextIsStrictlyGreater(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := Time(rapid.Float64Range(0, 1e9).Draw(t, "base"))
		delta := Time(rapid.Float64Range(0, 10).Draw(t, "delta"))
		n := Next(base, delta)
		if !(n > base) {
			t.Fatalf("Next(%v, %v) = %v, not greater", base, delta, n)
		}
	})
}

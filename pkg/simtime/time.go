package simtime

import (
	"math"
	"strconv"
	"time"
)

// Time is a point in simulated time, in seconds.
type Time float64

// Reserved time values.
const (
	// Zero is the beginning of simulation.
	Zero Time = 0.0

	// Epsilon is the minimum time resolution.
	Epsilon Time = 1e-9

	// Invalid has no meaning as a time.
	Invalid Time = -1.785e39

	// MaxTime marks a terminated federation or a run-to-end request.
	MaxTime Time = 9223372036.854774
)

// IsMax reports whether t is at or beyond MaxTime.
func (t Time) IsMax() bool {
	return t >= MaxTime
}

// IsValid reports whether t is a meaningful time.
func (t Time) IsValid() bool {
	return t > Invalid && !math.IsNaN(float64(t))
}

// Seconds returns t as a float64 number of seconds.
func (t Time) Seconds() float64 {
	return float64(t)
}

// Duration converts t to a time.Duration, saturating at the int64 range.
func (t Time) Duration() time.Duration {
	if t.IsMax() {
		return time.Duration(math.MaxInt64)
	}
	if t <= Time(math.MinInt64)/Time(time.Second) {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(float64(t) * float64(time.Second))
}

// FromDuration converts a time.Duration to simulated time.
func FromDuration(d time.Duration) Time {
	return Time(d.Seconds())
}

// String formats the time, naming the sentinels.
func (t Time) String() string {
	switch {
	case t.IsMax():
		return "MAXTIME"
	case !t.IsValid():
		return "INVALID"
	}
	return strconv.FormatFloat(float64(t), 'g', -1, 64)
}

// Equal reports whether a and b are within Epsilon of each other.
func Equal(a, b Time) bool {
	if a.IsMax() && b.IsMax() {
		return true
	}
	return math.Abs(float64(a-b)) < float64(Epsilon)
}

// Less reports whether a is earlier than b by at least Epsilon.
func Less(a, b Time) bool {
	return !Equal(a, b) && a < b
}

// Min returns the smallest of the given times, or MaxTime when called with none.
func Min(ts ...Time) Time {
	m := MaxTime
	for _, t := range ts {
		if t < m {
			m = t
		}
	}
	return m
}

// Max returns the largest of the given times, or Invalid when called with none.
func Max(ts ...Time) Time {
	m := Invalid
	for _, t := range ts {
		if t > m {
			m = t
		}
	}
	return m
}

// Add returns t+d, saturating at MaxTime.
func Add(t, d Time) Time {
	if t.IsMax() || d.IsMax() {
		return MaxTime
	}
	s := t + d
	if s > MaxTime {
		return MaxTime
	}
	return s
}

// Next returns the earliest time after t that is at least delta later.
// A delta below Epsilon is raised to Epsilon. The result is always strictly
// greater than t in floating point, even where t+Epsilon would round back to t.
func Next(t, delta Time) Time {
	if t.IsMax() {
		return MaxTime
	}
	if delta < Epsilon {
		delta = Epsilon
	}
	n := Add(t, delta)
	if n <= t {
		n = Time(math.Nextafter(float64(t), math.Inf(1)))
	}
	return n
}

// Ceil aligns t up to the grid offset + k*period. A non-positive period
// leaves t unchanged.
func Ceil(t, period, offset Time) Time {
	if period <= Epsilon || t.IsMax() {
		return t
	}
	if t <= offset {
		return offset
	}
	steps := math.Ceil(float64((t-offset)/period) - float64(Epsilon/period))
	return offset + Time(steps)*period
}

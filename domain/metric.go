package domain

import "time"

// MetricState distinguishes an observed value from one that could not be
// determined. Remote APIs frequently answer "0" both for genuinely empty
// repositories and for fields they refuse to disclose; the two must never
// be conflated in the exported data.
type MetricState int

const (
	// MetricUnknown means the value could not be determined (failed call,
	// missing field, malformed response).
	MetricUnknown MetricState = iota
	// MetricEmpty means the backend answered and the value is zero.
	MetricEmpty
	// MetricKnown means the backend answered with a nonzero value.
	MetricKnown
)

// Metric is a tri-state integer measurement (byte size, file count, branch
// count). The zero Metric is Unknown.
type Metric struct {
	state MetricState
	value int64
}

// KnownMetric wraps an observed value. An observed zero collapses to Empty
// so that Known always carries a usable nonzero figure.
func KnownMetric(v int64) Metric {
	if v <= 0 {
		return Metric{state: MetricEmpty}
	}
	return Metric{state: MetricKnown, value: v}
}

// EmptyMetric is an observed zero.
func EmptyMetric() Metric { return Metric{state: MetricEmpty} }

// UnknownMetric is a value that could not be determined.
func UnknownMetric() Metric { return Metric{state: MetricUnknown} }

// State returns the tri-state of the metric.
func (m Metric) State() MetricState { return m.state }

// Value returns the measured value and whether it is usable (Known).
func (m Metric) Value() (int64, bool) {
	return m.value, m.state == MetricKnown
}

// Int64 returns the raw value, 0 for Empty and Unknown.
func (m Metric) Int64() int64 { return m.value }

// Usable reports whether the metric carries a nonzero observed value.
func (m Metric) Usable() bool { return m.state == MetricKnown }

// Determined reports whether the backend answered at all (Known or Empty).
func (m Metric) Determined() bool { return m.state != MetricUnknown }

// Timestamp is a tri-state moment in time: either observed or unknown.
// The zero Timestamp is unknown.
type Timestamp struct {
	t     time.Time
	known bool
}

// KnownTime wraps an observed timestamp. A zero time stays unknown.
func KnownTime(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{t: t, known: true}
}

// UnknownTime is a timestamp that could not be determined.
func UnknownTime() Timestamp { return Timestamp{} }

// Time returns the observed moment and whether it is usable.
func (ts Timestamp) Time() (time.Time, bool) { return ts.t, ts.known }

// Known reports whether the timestamp was observed.
func (ts Timestamp) Known() bool { return ts.known }

// After reports whether both timestamps are known and ts is later.
func (ts Timestamp) After(other Timestamp) bool {
	return ts.known && other.known && ts.t.After(other.t)
}

// Within reports whether the timestamp is known and falls inside the
// trailing window ending at now.
func (ts Timestamp) Within(window time.Duration, now time.Time) bool {
	return ts.known && ts.t.After(now.Add(-window))
}

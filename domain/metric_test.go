package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rios0rios0/repoinventory/domain"
)

func TestMetric(t *testing.T) {
	t.Parallel()

	t.Run("should never conflate an observed zero with an unknown value", func(t *testing.T) {
		t.Parallel()

		// given
		empty := domain.EmptyMetric()
		unknown := domain.UnknownMetric()

		// then
		assert.True(t, empty.Determined())
		assert.False(t, unknown.Determined())
		assert.False(t, empty.Usable())
		assert.False(t, unknown.Usable())
		assert.NotEqual(t, empty.State(), unknown.State())
	})

	t.Run("should collapse an observed zero to Empty", func(t *testing.T) {
		t.Parallel()

		// when
		m := domain.KnownMetric(0)

		// then
		assert.Equal(t, domain.MetricEmpty, m.State())
	})

	t.Run("should expose a usable nonzero observation", func(t *testing.T) {
		t.Parallel()

		// when
		m := domain.KnownMetric(42)

		// then
		v, ok := m.Value()
		assert.True(t, ok)
		assert.Equal(t, int64(42), v)
	})
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("should treat a zero time as unknown", func(t *testing.T) {
		t.Parallel()

		// when
		ts := domain.KnownTime(time.Time{})

		// then
		assert.False(t, ts.Known())
	})

	t.Run("should report recency only inside the trailing window", func(t *testing.T) {
		t.Parallel()

		// given
		now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		recent := domain.KnownTime(now.AddDate(-1, 0, 0))
		stale := domain.KnownTime(now.AddDate(-3, 0, 0))

		// then
		assert.True(t, recent.Within(domain.DefaultRecencyWindow, now))
		assert.False(t, stale.Within(domain.DefaultRecencyWindow, now))
		assert.False(t, domain.UnknownTime().Within(domain.DefaultRecencyWindow, now))
	})

	t.Run("should order only known timestamps", func(t *testing.T) {
		t.Parallel()

		// given
		earlier := domain.KnownTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		later := domain.KnownTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

		// then
		assert.True(t, later.After(earlier))
		assert.False(t, earlier.After(later))
		assert.False(t, later.After(domain.UnknownTime()))
	})
}

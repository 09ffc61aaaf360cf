package credential_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/repoinventory/infrastructure/credential"
)

// stubClock advances its notion of "now" by the slept duration instead of
// blocking, and records every sleep.
type stubClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	onWake func()
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	wake := c.onWake
	c.mu.Unlock()
	if wake != nil {
		wake()
	}
}

func (c *stubClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func TestRotator_Next(t *testing.T) {
	t.Parallel()

	t.Run("should return each token exactly three times over 3K calls in order", func(t *testing.T) {
		t.Parallel()

		// given
		tokens := []string{"alpha", "bravo", "charlie"}
		rot, err := credential.NewRotator(tokens)
		require.NoError(t, err)

		// when
		var got []string
		for i := 0; i < 3*len(tokens); i++ {
			got = append(got, rot.Next())
		}

		// then
		assert.Equal(t, []string{
			"alpha", "bravo", "charlie",
			"alpha", "bravo", "charlie",
			"alpha", "bravo", "charlie",
		}, got)
	})

	t.Run("should start from the pool's first element", func(t *testing.T) {
		t.Parallel()

		// given
		rot, err := credential.NewRotator([]string{"first", "second"})
		require.NoError(t, err)

		// when / then
		assert.Equal(t, "first", rot.Next())
	})

	t.Run("should reject an empty pool", func(t *testing.T) {
		t.Parallel()

		// when
		rot, err := credential.NewRotator(nil)

		// then
		require.Error(t, err)
		assert.Nil(t, rot)
	})
}

func TestRotator_AwaitQuota(t *testing.T) {
	t.Parallel()

	t.Run("should pass through immediately when quota is unknown", func(t *testing.T) {
		t.Parallel()

		// given
		rot, err := credential.NewRotator([]string{"tok"})
		require.NoError(t, err)

		// when / then
		require.NoError(t, rot.AwaitQuota(context.Background(), "github"))
	})

	t.Run("should pass through when remaining quota is above the margin", func(t *testing.T) {
		t.Parallel()

		// given
		clock := &stubClock{now: time.Unix(1000, 0)}
		rot, err := credential.NewRotator([]string{"tok"}, credential.WithClock(clock))
		require.NoError(t, err)
		rot.Observe("github", 500, clock.Now().Add(time.Hour))

		// when
		require.NoError(t, rot.AwaitQuota(context.Background(), "github"))

		// then: no sleeping happened
		assert.Empty(t, clock.sleeps())
	})

	t.Run("should block until the reset time elapses when quota is exhausted", func(t *testing.T) {
		t.Parallel()

		// given
		clock := &stubClock{now: time.Unix(1000, 0)}
		rot, err := credential.NewRotator([]string{"tok"}, credential.WithClock(clock))
		require.NoError(t, err)
		rot.Observe("github", 0, clock.Now().Add(90*time.Second))

		// when
		require.NoError(t, rot.AwaitQuota(context.Background(), "github"))

		// then: exactly one wait for the full interval, no request issued
		// during the blocked window
		require.Len(t, clock.sleeps(), 1)
		assert.Equal(t, 90*time.Second, clock.sleeps()[0])
	})

	t.Run("should treat an already-passed reset as replenished", func(t *testing.T) {
		t.Parallel()

		// given
		clock := &stubClock{now: time.Unix(5000, 0)}
		rot, err := credential.NewRotator([]string{"tok"}, credential.WithClock(clock))
		require.NoError(t, err)
		rot.Observe("github", 2, clock.Now().Add(-time.Minute))

		// when / then
		require.NoError(t, rot.AwaitQuota(context.Background(), "github"))
		assert.Empty(t, clock.sleeps())
	})

	t.Run("should honor the configured safety margin", func(t *testing.T) {
		t.Parallel()

		// given: 15 remaining is fine for the default margin of 10 but not
		// for a margin of 20
		clock := &stubClock{now: time.Unix(1000, 0)}
		rot, err := credential.NewRotator(
			[]string{"tok"},
			credential.WithClock(clock),
			credential.WithQuotaSafetyMargin(20),
		)
		require.NoError(t, err)
		rot.Observe("github", 15, clock.Now().Add(time.Minute))

		// when
		require.NoError(t, rot.AwaitQuota(context.Background(), "github"))

		// then
		require.Len(t, clock.sleeps(), 1)
	})

	t.Run("should not let one target's wait affect another target", func(t *testing.T) {
		t.Parallel()

		// given
		clock := &stubClock{now: time.Unix(1000, 0)}
		rot, err := credential.NewRotator([]string{"tok"}, credential.WithClock(clock))
		require.NoError(t, err)
		rot.Observe("github", 0, clock.Now().Add(time.Hour))
		rot.Observe("azuredevops", 900, clock.Now().Add(time.Hour))

		// when / then: the azuredevops target is unaffected
		require.NoError(t, rot.AwaitQuota(context.Background(), "azuredevops"))
		assert.Empty(t, clock.sleeps())
	})

	t.Run("should return the context error when canceled while exhausted", func(t *testing.T) {
		t.Parallel()

		// given: the sleeper cancels the context mid-wait
		ctx, cancel := context.WithCancel(context.Background())
		clock := &stubClock{now: time.Unix(1000, 0), onWake: cancel}
		rot, err := credential.NewRotator([]string{"tok"}, credential.WithClock(clock))
		require.NoError(t, err)
		rot.Observe("github", 0, clock.Now().Add(time.Hour))

		// when
		waitErr := rot.AwaitQuota(ctx, "github")

		// then
		require.ErrorIs(t, waitErr, context.Canceled)
	})
}

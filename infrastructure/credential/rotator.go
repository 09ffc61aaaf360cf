// Package credential rotates access tokens across outbound calls and
// tracks remote rate-limit headroom per target.
package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
)

// DefaultQuotaSafetyMargin is the remaining-call floor below which
// AwaitQuota blocks until the remote quota resets.
const DefaultQuotaSafetyMargin = 10

var errEmptyTokenPool = errors.New("credential pool must contain at least one token")

// Rotator cycles through a pool of access tokens and gates callers on the
// remote-reported quota. One instance is constructed at startup and handed
// to every worker; there is no process-global state.
type Rotator struct {
	mu     sync.Mutex
	tokens []string
	next   int

	margin int
	clock  domain.Clock

	targetsMu sync.Mutex
	targets   map[string]*targetQuota
}

// targetQuota is the last-known rate-limit snapshot for one remote target.
// Each target has its own lock so a quota wait against one platform never
// serializes consumers of another.
type targetQuota struct {
	mu        sync.Mutex
	known     bool
	remaining int
	reset     time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithClock replaces the system clock, for tests.
func WithClock(clock domain.Clock) Option {
	return func(r *Rotator) { r.clock = clock }
}

// WithQuotaSafetyMargin overrides the remaining-call floor.
func WithQuotaSafetyMargin(margin int) Option {
	return func(r *Rotator) { r.margin = margin }
}

// NewRotator creates a rotator over the given token pool. Rotation order is
// deterministic and starts from the pool's first element.
func NewRotator(tokens []string, opts ...Option) (*Rotator, error) {
	if len(tokens) == 0 {
		return nil, errEmptyTokenPool
	}
	r := &Rotator{
		tokens:  append([]string(nil), tokens...),
		margin:  DefaultQuotaSafetyMargin,
		clock:   domain.SystemClock{},
		targets: make(map[string]*targetQuota),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Next returns the next token in round-robin order. Every outbound call
// advances the single process-wide sequence regardless of target.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	token := r.tokens[r.next]
	r.next = (r.next + 1) % len(r.tokens)
	return token
}

// Size returns the number of tokens in the pool.
func (r *Rotator) Size() int { return len(r.tokens) }

// Observe ingests a remote-reported rate-limit snapshot for a target.
func (r *Rotator) Observe(target string, remaining int, reset time.Time) {
	q := r.quotaFor(target)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.known = true
	q.remaining = remaining
	q.reset = reset
}

// AwaitQuota blocks until the target's remaining quota is at or above the
// safety margin, sleeping through the remote-reported reset time. Holding
// the target's lock while sleeping is deliberate: only one worker waits per
// target, so a herd of workers cannot pile redundant quota checks onto an
// exhausted credential.
func (r *Rotator) AwaitQuota(ctx context.Context, target string) error {
	q := r.quotaFor(target)
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.known && q.remaining < r.margin {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := q.reset.Sub(r.clock.Now())
		if wait <= 0 {
			// Reset instant passed; assume the quota replenished.
			q.known = false
			break
		}
		logger.Warnf("Quota for %q exhausted (%d remaining); waiting %s for reset", target, q.remaining, wait)
		r.clock.Sleep(ctx, wait)
		q.known = false
	}
	return ctx.Err()
}

func (r *Rotator) quotaFor(target string) *targetQuota {
	r.targetsMu.Lock()
	defer r.targetsMu.Unlock()
	q, ok := r.targets[target]
	if !ok {
		q = &targetQuota{}
		r.targets[target] = q
	}
	return q
}

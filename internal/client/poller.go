package client

import (
	"context"
	"sync"
	"time"
)

// FetchFunc performs one read under opts.
type FetchFunc[T any] func(ctx context.Context, opts PollOptions) (*T, error)

// PollResult is what a consumer renders after each tick.
// Value is the last good value; Err is a *StaleReadError when the latest fetch failed.
type PollResult[T any] struct {
	Value     *T
	Err       error
	FetchedAt time.Time
}

// Poller refetches on a fixed interval and keeps the last good value across failures.
type Poller[T any] struct {
	fetch FetchFunc[T]
	opts  PollOptions
	now   func() time.Time

	mu          sync.Mutex
	last        *T
	lastSuccess time.Time
	failures    int
}

// NewPoller creates a Poller for fetch. A zero interval uses SummaryPoll's.
func NewPoller[T any](fetch FetchFunc[T], opts PollOptions) *Poller[T] {
	if opts.Interval <= 0 {
		opts.Interval = SummaryPoll.Interval
	}
	if opts.CachePolicy == "" {
		opts.CachePolicy = CacheNoStore
	}
	return &Poller[T]{fetch: fetch, opts: opts, now: time.Now}
}

// Options returns the options every fetch is issued with.
func (p *Poller[T]) Options() PollOptions {
	return p.opts
}

// Poll fetches once.
func (p *Poller[T]) Poll(ctx context.Context) PollResult[T] {
	value, err := p.fetch(ctx, p.opts)
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failures++
		return PollResult[T]{
			Value:     p.last,
			Err:       &StaleReadError{Err: err, LastSuccess: p.lastSuccess, Failures: p.failures},
			FetchedAt: now,
		}
	}
	p.last = value
	p.lastSuccess = now
	p.failures = 0
	return PollResult[T]{Value: value, FetchedAt: now}
}

// Run polls immediately and then on every interval until ctx is done.
// A slow fetch delays the next tick rather than overlapping it.
func (p *Poller[T]) Run(ctx context.Context, emit func(PollResult[T])) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		emit(p.Poll(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

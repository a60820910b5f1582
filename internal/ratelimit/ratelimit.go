// Package ratelimit provides a sliding-window rate limiter shared by
// every outbound Helix call.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most maxCalls calls within any trailing period.
// Wait never rejects, it only delays.
//
// Admission bookkeeping is serialized: a waiter sleeps while holding
// the mutex, so concurrent callers queue behind it instead of racing
// for the slot that frees up. The remote call itself happens outside
// the limiter, so admitted calls still execute concurrently.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	window   []time.Time
}

// New creates a limiter allowing maxCalls per period. Panics if either
// is non-positive; both are fixed at construction.
func New(maxCalls int, period time.Duration) *Limiter {
	if maxCalls <= 0 {
		panic("ratelimit: maxCalls must be positive")
	}

	if period <= 0 {
		panic("ratelimit: period must be positive")
	}

	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
	}
}

// Wait blocks until one more call may be admitted, then records the
// admission and returns nil. It returns early with the context error
// if ctx is cancelled while waiting; in that case no admission is
// recorded.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		now := time.Now()
		cutoff := now.Add(-l.period)

		// Prune entries that have aged out of the window.
		kept := l.window[:0]
		for _, ts := range l.window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		l.window = kept

		if len(l.window) < l.maxCalls {
			l.window = append(l.window, now)
			return nil
		}

		wait := l.period - now.Sub(l.window[0])
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Size returns the current number of admissions still inside the
// window. Intended for tests and metrics.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.period)
	n := 0

	for _, ts := range l.window {
		if ts.After(cutoff) {
			n++
		}
	}

	return n
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"context"
	"sync"
	"time"
)

// barrier wakes a waiter whenever a collection window may have completed.
// The count is only reported; completion is decided by the waiter.
type barrier struct {
	mu     sync.Mutex
	count  int
	signal chan struct{}
}

func newBarrier() *barrier {
	return &barrier{signal: make(chan struct{}, 1)}
}

func (b *barrier) add(n int) {
	b.mu.Lock()
	b.count += n
	b.mu.Unlock()

	b.notify()
}

func (b *barrier) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *barrier) reset() {
	b.mu.Lock()
	b.count = 0
	b.mu.Unlock()
}

func (b *barrier) received() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// wait blocks until done reports true, the budget elapses, or ctx is done.
// It reports whether done was reached. done is re-evaluated on every wake-up
// and must not be called with b.mu held.
func (b *barrier) wait(ctx context.Context, done func() bool, budget time.Duration) bool {
	timer := time.NewTimer(budget)
	defer timer.Stop()
	defer b.reset()

	for {
		if done() {
			return true
		}

		select {
		case <-b.signal:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Package semaphore bounds the number of concurrently running operations.
// A nil *Slots is an unbounded semaphore: every call succeeds immediately.
package semaphore

import (
	"context"
)

// Slots hands out a fixed number of slots.
type Slots struct {
	sem chan struct{}
}

// New creates a semaphore with n free slots. For n <= 0 it returns nil,
// which never blocks.
func New(n int) *Slots {
	if n <= 0 {
		return nil
	}
	return &Slots{sem: make(chan struct{}, n)}
}

// Acquire takes a slot, waiting until one is free or ctx is done.
func (s *Slots) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot if one is free.
func (s *Slots) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (s *Slots) Release() {
	if s == nil {
		return
	}
	select {
	case <-s.sem:
	default:
		panic("semaphore: release without acquire")
	}
}

// InUse returns the number of taken slots.
func (s *Slots) InUse() int {
	if s == nil {
		return 0
	}
	return len(s.sem)
}

// Cap returns the number of slots, 0 meaning unbounded.
func (s *Slots) Cap() int {
	if s == nil {
		return 0
	}
	return cap(s.sem)
}

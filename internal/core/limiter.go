package core

// limiter.go bounds how many saves run at once.
//
// Each save holds a slot for its whole retry loop. Acquire waits up to
// maxWait for a slot, then fails with ErrTooManySaves.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManySaves is returned when every save slot stays busy past the wait
// timeout. Callers should retry after a short delay.
var ErrTooManySaves = errors.New("too many concurrent saves, please try again later")

// Limiter defaults.
const (
	DefaultMaxConcurrentSaves = 4
	DefaultMaxWaitTime        = 30 * time.Second
)

// Limiter is a counting semaphore for save operations.
type Limiter struct {
	semaphore chan struct{}
	maxWait   time.Duration
	active    atomic.Int64
}

// NewLimiter creates a limiter allowing maxConcurrent simultaneous saves.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSaves
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// The caller must Release the slot when done.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTooManySaves
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	<-l.semaphore
}

// ActiveCount returns the number of slots in use.
func (l *Limiter) ActiveCount() int { return int(l.active.Load()) }

// MaxConcurrent returns the slot count.
func (l *Limiter) MaxConcurrent() int { return cap(l.semaphore) }

// Available returns the number of free slots.
func (l *Limiter) Available() int { return cap(l.semaphore) - len(l.semaphore) }

// WaitForDrain blocks until no slot is in use or ctx is done.
// Used on shutdown so in-flight saves can finish.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the limiter state for health endpoints.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
	}
}

package core

// limiter.go bounds concurrent ingest runs. Each run holds a full file
// and its resolved rows in memory, so a handful of simultaneous uploads
// is the practical ceiling. The limiter is a plain semaphore with a
// bounded wait and a drain hook for graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyIngests is returned when every ingest slot stays occupied
// for the whole wait window. Clients should retry shortly.
var ErrTooManyIngests = errors.New("too many concurrent ingests, please try again later")

// IngestLimiter restricts how many ingest runs execute at once.
type IngestLimiter struct {
	sem     chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
}

// NewIngestLimiter allows at most maxConcurrent simultaneous ingests;
// callers that cannot get a slot within maxWait receive ErrTooManyIngests.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &IngestLimiter{
		sem:     make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks for a slot. The caller must Release exactly once per
// successful Acquire.
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.sem <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyIngests
	}
}

// Release frees a previously acquired slot.
func (l *IngestLimiter) Release() {
	select {
	case <-l.sem:
	default:
		// Release without Acquire is a programming error; don't block.
		return
	}
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
}

// Active returns the number of ingests currently running.
func (l *IngestLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// WaitForDrain blocks until no ingests are active or ctx expires.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

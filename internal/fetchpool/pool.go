// internal/fetchpool/pool.go
package fetchpool

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of simultaneous description fetches across all
// concurrently crawled organizations. It is a plain counting semaphore:
// acquisition blocks until a slot frees, and completions may land out of
// submission order.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New creates a pool admitting at most n concurrent fetches.
func New(n int) *Pool {
	if n <= 0 {
		n = 4
	}
	if n > 64 {
		n = 64
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Do runs fn while holding one slot. It blocks for a slot (or until ctx is
// cancelled) and always releases on return, including panics unwinding
// through fn.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Size returns the configured slot count.
func (p *Pool) Size() int {
	return int(p.size)
}

// Drain waits until every in-flight fetch has released its slot.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	log.Debug().Int64("slots", p.size).Msg("Fetch pool drained")
	return nil
}

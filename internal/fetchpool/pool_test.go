package fetchpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_NeverExceedsBound(t *testing.T) {
	const n = 3
	const burst = 50

	pool := New(n)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				cur := atomic.AddInt64(&inFlight, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > n {
		t.Errorf("Expected at most %d concurrent fetches, observed %d", n, got)
	}
}

func TestDo_ReleasesOnError(t *testing.T) {
	pool := New(1)

	_ = pool.Do(context.Background(), func() error { return context.DeadlineExceeded })

	// Slot must be free again; a second Do should not block.
	done := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Slot was not released after an error")
	}
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	pool := New(1)

	release := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond) // let the holder acquire

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pool.Do(ctx, func() error { return nil }); err == nil {
		t.Error("Expected acquisition to fail on cancelled context")
	}
	close(release)
}

func TestDrain(t *testing.T) {
	pool := New(2)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				<-release
				return nil
			})
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Drain(ctx); err != nil {
		t.Errorf("Drain failed: %v", err)
	}
}

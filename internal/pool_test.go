package internal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsConcurrently(t *testing.T) {
	wp := NewWorkerPool(2)
	wp.Start()
	defer wp.Stop()

	// N=2 so both sleeps overlap
	var wg sync.WaitGroup
	wg.Add(2)
	start := time.Now()
	for i := 0; i < 2; i++ {
		if !wp.TryQueue(func() {
			time.Sleep(500 * time.Millisecond)
			wg.Done()
		}) {
			t.Fatalf("TryQueue dropped work %d", i)
		}
	}
	wg.Wait()
	if took := time.Since(start); took > 900*time.Millisecond {
		t.Fatalf("took %v for queued work, it should have run concurrently", took)
	}
}

func TestWorkerPoolTryQueueDropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1)
	// not started, so the buffer of 1 fills up and stays full
	if !wp.TryQueue(func() {}) {
		t.Fatalf("TryQueue dropped work on an empty pool")
	}
	if wp.TryQueue(func() {}) {
		t.Fatalf("TryQueue accepted work on a full pool")
	}
	wp.Start()
	wp.Stop()
}

func TestWorkerPoolStop(t *testing.T) {
	wp := NewWorkerPool(2)
	var done int32
	wp.TryQueue(func() {
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&done, 1)
	})
	wp.TryQueue(func() {
		atomic.AddInt32(&done, 1)
	})
	wp.Start()
	wp.Stop()
	if got := atomic.LoadInt32(&done); got != 2 {
		t.Fatalf("Stop returned before queued work finished: %d/2 done", got)
	}
	t.Log("A stopped pool drops work instead of panicking.")
	if wp.TryQueue(func() { atomic.AddInt32(&done, 1) }) {
		t.Fatalf("TryQueue accepted work after Stop")
	}
	wp.Stop()
	wp.Start()
}

func TestWorkerPoolStopWithoutStart(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.TryQueue(func() {})
	wp.Stop()
	if wp.TryQueue(func() {}) {
		t.Fatalf("TryQueue accepted work after Stop")
	}
}

package main

import (
	"context"
	"testing"
	"time"
)

func TestWorkerPoolSubmitManualReturnsVerdict(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubReasoningClient{})
	pool := NewWorkerPool(orch, WorkerConfig{PoolSize: 2, FairnessRatio: 4})
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	v, err := pool.SubmitManual(t.Context(), "example.com", "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Domain != "example.com" {
		t.Errorf("verdict domain = %q, want example.com", v.Domain)
	}
}

func TestWorkerPoolSubmitPolledDropsOnFullQueue(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubReasoningClient{})
	pool := NewWorkerPool(orch, WorkerConfig{PoolSize: 1, FairnessRatio: 4})
	// Fill the polled queue without starting any workers to drain it.
	pool.polled = make(chan workItem, 1)
	pool.SubmitPolled(UpstreamEvent{Domain: "a.com"})
	pool.SubmitPolled(UpstreamEvent{Domain: "b.com"}) // must drop, not block

	if len(pool.polled) != 1 {
		t.Errorf("polled queue length = %d, want 1 (second submission should have been dropped)", len(pool.polled))
	}
}

func TestWorkerPoolDefaultsAppliedWhenUnset(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubReasoningClient{})
	pool := NewWorkerPool(orch, WorkerConfig{})
	if pool.size != 8 {
		t.Errorf("default pool size = %d, want 8", pool.size)
	}
	if pool.fairness != 4 {
		t.Errorf("default fairness ratio = %d, want 4", pool.fairness)
	}
}

func TestWorkerPoolStopWaitsForInFlightWork(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubReasoningClient{})
	pool := NewWorkerPool(orch, WorkerConfig{PoolSize: 1, FairnessRatio: 4})
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	pool.Start(ctx)

	done := make(chan struct{})
	go func() {
		pool.SubmitManual(t.Context(), "shutdown-race.com", "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitManual did not complete before pool shutdown")
	}
	pool.Stop()
}

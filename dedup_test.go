package main

import (
	"testing"
	"time"
)

func TestDeduplicatorAdmitsFirstCaller(t *testing.T) {
	d := NewDeduplicator(10, NewVerdictCache(16, time.Minute, nil))
	if !d.Admit("a.com") {
		t.Fatal("expected first caller for a fresh domain to be admitted")
	}
	if d.InFlightCount() != 1 {
		t.Errorf("InFlightCount = %d, want 1", d.InFlightCount())
	}
}

func TestDeduplicatorRejectsInFlightDuplicate(t *testing.T) {
	d := NewDeduplicator(10, NewVerdictCache(16, time.Minute, nil))
	d.Admit("a.com")
	if d.Admit("a.com") {
		t.Error("expected a second concurrent caller for the same domain to be rejected while in flight")
	}
}

func TestDeduplicatorRejectsRecentlyCompleted(t *testing.T) {
	d := NewDeduplicator(10, NewVerdictCache(16, time.Minute, nil))
	d.Admit("a.com")
	d.Complete("a.com")
	if d.Admit("a.com") {
		t.Error("expected a domain within the recent window to be rejected")
	}
	if d.InFlightCount() != 0 {
		t.Errorf("InFlightCount after Complete = %d, want 0", d.InFlightCount())
	}
}

func TestDeduplicatorRejectsCachedDomain(t *testing.T) {
	cache := NewVerdictCache(16, time.Minute, nil)
	cache.Store("cached.com", Verdict{Domain: "cached.com"})
	d := NewDeduplicator(10, cache)
	if d.Admit("cached.com") {
		t.Error("expected a domain with a live cache entry to be rejected outright")
	}
}

func TestDeduplicatorRecentWindowFIFOEviction(t *testing.T) {
	d := NewDeduplicator(2, NewVerdictCache(16, time.Minute, nil))
	d.Admit("a.com")
	d.Complete("a.com")
	d.Admit("b.com")
	d.Complete("b.com")
	d.Admit("c.com")
	d.Complete("c.com")

	// window=2: "a.com" should have been evicted, freeing it for re-admission.
	if !d.Admit("a.com") {
		t.Error("expected the oldest recent entry to be evicted once the window was exceeded")
	}
	if d.Admit("b.com") {
		t.Error("expected b.com to still be within the recent window")
	}
}

func TestDeduplicatorCompleteIsIdempotent(t *testing.T) {
	d := NewDeduplicator(10, NewVerdictCache(16, time.Minute, nil))
	d.Admit("a.com")
	d.Complete("a.com")
	d.Complete("a.com") // must not double-append to the FIFO order slice
	if len(d.order) != 1 {
		t.Errorf("order length after duplicate Complete = %d, want 1", len(d.order))
	}
}

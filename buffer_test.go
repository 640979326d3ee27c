package main

import "testing"

func TestVerdictBufferRecentMostRecentFirst(t *testing.T) {
	b := NewVerdictBuffer(10)
	b.Append(Verdict{Domain: "a.com"})
	b.Append(Verdict{Domain: "b.com"})
	b.Append(Verdict{Domain: "c.com"})

	got := b.Recent(3)
	want := []string{"c.com", "b.com", "a.com"}
	for i, v := range got {
		if v.Domain != want[i] {
			t.Errorf("Recent()[%d] = %q, want %q", i, v.Domain, want[i])
		}
	}
}

func TestVerdictBufferRecentCapsAtSize(t *testing.T) {
	b := NewVerdictBuffer(10)
	b.Append(Verdict{Domain: "a.com"})
	if got := b.Recent(5); len(got) != 1 {
		t.Errorf("Recent(5) on a 1-entry buffer returned %d entries, want 1", len(got))
	}
}

func TestVerdictBufferOverwritesOldestOnceFull(t *testing.T) {
	b := NewVerdictBuffer(2)
	b.Append(Verdict{Domain: "a.com"})
	b.Append(Verdict{Domain: "b.com"})
	b.Append(Verdict{Domain: "c.com"})

	got := b.Recent(2)
	if len(got) != 2 || got[0].Domain != "c.com" || got[1].Domain != "b.com" {
		t.Errorf("Recent(2) after overflow = %+v, want [c.com b.com]", got)
	}
}

func TestVerdictBufferRecentBySessionFiltersAndCaps(t *testing.T) {
	b := NewVerdictBuffer(10)
	b.Append(Verdict{Domain: "a.com", SessionID: "s1"})
	b.Append(Verdict{Domain: "b.com", SessionID: "s2"})
	b.Append(Verdict{Domain: "c.com", SessionID: "s1"})

	got := b.RecentBySession("s1", 10)
	if len(got) != 2 {
		t.Fatalf("RecentBySession(s1) returned %d entries, want 2", len(got))
	}
	if got[0].Domain != "c.com" || got[1].Domain != "a.com" {
		t.Errorf("RecentBySession(s1) = %+v, want [c.com a.com]", got)
	}
}

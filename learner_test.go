package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLearner(t *testing.T) (*PatternLearner, *SignatureStore, string) {
	t.Helper()
	store := NewSignatureStore(30 * 24 * time.Hour)
	cc := NewClientClassifier(map[string]string{"192.168.1.0/24": "home"})
	classifier := NewMetadataClassifier(store, cc, 0.9)
	path := filepath.Join(t.TempDir(), "signatures.json")
	return NewPatternLearner(store, classifier, path), store, path
}

func TestPatternLearnerObservesReasoningVerdicts(t *testing.T) {
	learner, store, _ := newTestLearner(t)
	ev := UpstreamEvent{FilterReason: "dga", FilterID: "f1", Client: "192.168.1.5"}
	v := Verdict{Domain: "abc123.com", Source: SourceReasoning, Risk: RiskHigh, Category: CategoryMalware}

	learner.Observe(v, ev, 1.0)

	if len(store.Snapshot()) != 1 {
		t.Fatalf("expected one signature to be recorded, got %d", len(store.Snapshot()))
	}
}

func TestPatternLearnerIgnoresLowConfidenceMetadata(t *testing.T) {
	learner, store, _ := newTestLearner(t)
	ev := UpstreamEvent{FilterReason: "unknown", Client: "192.168.1.5"}
	v := Verdict{Domain: "x.com", Source: SourceMetadata, Risk: RiskLow}

	learner.Observe(v, ev, 0.5)

	if len(store.Snapshot()) != 0 {
		t.Error("expected sub-threshold Metadata confidence to be ignored")
	}
}

func TestPatternLearnerIgnoresCacheAndHeuristicSources(t *testing.T) {
	learner, store, _ := newTestLearner(t)
	ev := UpstreamEvent{FilterReason: "unknown", Client: "192.168.1.5"}

	learner.Observe(Verdict{Domain: "a.com", Source: SourceCache}, ev, 1.0)
	learner.Observe(Verdict{Domain: "b.com", Source: SourceHeuristic}, ev, 1.0)

	if len(store.Snapshot()) != 0 {
		t.Error("expected Cache- and Heuristic-sourced verdicts not to feed the signature store")
	}
}

func TestPatternLearnerUpsertBlendsConfidence(t *testing.T) {
	learner, store, _ := newTestLearner(t)
	ev := UpstreamEvent{FilterReason: "dga", FilterID: "f1", Client: "192.168.1.5"}
	v := Verdict{Domain: "abc123.com", Source: SourceReasoning, Risk: RiskHigh, Category: CategoryMalware}

	learner.Observe(v, ev, 1.0)
	learner.Observe(v, ev, 0.5)

	sigs := store.Snapshot()
	if len(sigs) != 1 {
		t.Fatalf("expected repeated observations of the same key to blend into one signature, got %d", len(sigs))
	}
	want := 0.8*1.0 + 0.2*0.5
	if sigs[0].Confidence != want {
		t.Errorf("blended confidence = %v, want %v", sigs[0].Confidence, want)
	}
	if sigs[0].Hits != 2 {
		t.Errorf("hits = %d, want 2", sigs[0].Hits)
	}
}

func TestPatternLearnerSnapshotAndLoadSeedRoundTrip(t *testing.T) {
	learner, _, path := newTestLearner(t)
	ev := UpstreamEvent{FilterReason: "dga", FilterID: "f1", Client: "192.168.1.5"}
	learner.Observe(Verdict{Domain: "abc123.com", Source: SourceReasoning, Risk: RiskCritical, Category: CategoryMalware}, ev, 1.0)
	learner.Snapshot()

	store2 := NewSignatureStore(30 * 24 * time.Hour)
	cc := NewClientClassifier(map[string]string{"192.168.1.0/24": "home"})
	classifier2 := NewMetadataClassifier(store2, cc, 0.9)
	learner2 := NewPatternLearner(store2, classifier2, path)
	learner2.LoadSeed(nil)

	if len(store2.Snapshot()) != 1 {
		t.Fatalf("expected snapshot to survive reload, got %d signatures", len(store2.Snapshot()))
	}
}

func TestPatternLearnerLoadSeedFallsBackToBaselineWhenFileMissing(t *testing.T) {
	learner, store, _ := newTestLearner(t)
	baseline := []Signature{{Key: SignatureKey{Reason: "seed"}, Category: CategoryTracker, Risk: RiskMedium, Confidence: 0.95}}

	learner.LoadSeed(baseline)

	if len(store.Snapshot()) != 1 {
		t.Fatalf("expected baseline seed to load when no snapshot file exists, got %d", len(store.Snapshot()))
	}
}

func TestPatternLearnerLoadSeedFallsBackToBaselineOnMagicMismatch(t *testing.T) {
	learner, store, path := newTestLearner(t)
	if err := os.WriteFile(path, []byte(`[{"Key":{"Reason":"dga"}}]`), 0o644); err != nil {
		t.Fatalf("failed to write unversioned snapshot fixture: %v", err)
	}
	baseline := []Signature{{Key: SignatureKey{Reason: "seed"}, Category: CategoryTracker, Risk: RiskMedium, Confidence: 0.95}}

	learner.LoadSeed(baseline)

	sigs := store.Snapshot()
	if len(sigs) != 1 || sigs[0].Category != CategoryTracker {
		t.Fatalf("expected a magic-less snapshot file to be rejected and the baseline used instead, got %+v", sigs)
	}
}

func TestBaselineSignaturesSeedsSystemTrackerAndMalware(t *testing.T) {
	sigs := BaselineSignatures(time.Now())
	seen := map[string]bool{}
	for _, sig := range sigs {
		seen[sig.Category] = true
		if sig.Confidence < 0.9 {
			t.Errorf("expected seed signature %+v to carry high confidence", sig)
		}
	}
	for _, want := range []string{CategorySystem, CategoryTracker, CategoryMalware} {
		if !seen[want] {
			t.Errorf("expected baseline seed set to include a %s signature", want)
		}
	}
}

package main

import (
	"testing"
	"time"
)

func TestClientClassifierMatchesSegment(t *testing.T) {
	cc := NewClientClassifier(map[string]string{
		"192.168.1.0/24": "home",
		"192.168.2.0/24": "guest",
	})
	if got := cc.ClassOf("192.168.1.42"); got != "home" {
		t.Errorf("ClassOf(192.168.1.42) = %q, want home", got)
	}
	if got := cc.ClassOf("192.168.2.42"); got != "guest" {
		t.Errorf("ClassOf(192.168.2.42) = %q, want guest", got)
	}
}

func TestClientClassifierUnknownForUnmatchedIP(t *testing.T) {
	cc := NewClientClassifier(map[string]string{"192.168.1.0/24": "home"})
	if got := cc.ClassOf("10.0.0.1"); got != "unknown" {
		t.Errorf("ClassOf(10.0.0.1) = %q, want unknown", got)
	}
	if got := cc.ClassOf("not-an-ip"); got != "unknown" {
		t.Errorf("ClassOf(garbage) = %q, want unknown", got)
	}
}

func TestMatchNameKeywordsPrivacyEscalates(t *testing.T) {
	category, risk, escalate, matched := matchNameKeywords("telemetry.example.com")
	if !matched || category != CategoryPrivacy || risk != RiskHigh || !escalate {
		t.Errorf("privacy keyword match = (%q, %v, %v, %v), want (%q, %v, true, true)", category, risk, escalate, matched, CategoryPrivacy, RiskHigh)
	}
}

func TestMatchNameKeywordsTrackerDoesNotEscalate(t *testing.T) {
	category, risk, escalate, matched := matchNameKeywords("ads.example.com")
	if !matched || category != CategoryTracker || risk != RiskMedium || escalate {
		t.Errorf("tracker keyword match = (%q, %v, %v, %v)", category, risk, escalate, matched)
	}
}

func TestMatchNameKeywordsCommonLabelBypasses(t *testing.T) {
	// "metrics" is a tracker keyword, but a first-label allowlist entry
	// (a known CDN/infra token) must bypass keyword matching entirely.
	for label := range commonLabels {
		category, _, _, matched := matchNameKeywords(label + ".example.com")
		if matched {
			t.Errorf("expected common label %q to bypass keyword matching, got category %q", label, category)
		}
		break
	}
}

func TestMatchNameKeywordsNoMatch(t *testing.T) {
	_, _, _, matched := matchNameKeywords("wikipedia.org")
	if matched {
		t.Error("expected a benign domain not to match any keyword rule")
	}
}

func TestSignatureStoreUpsertInsertsThenBlends(t *testing.T) {
	s := NewSignatureStore(time.Hour)
	key := SignatureKey{Reason: "dga", FilterID: "f1"}
	now := time.Now()

	s.Upsert(key, CategoryMalware, RiskHigh, 1.0, now)
	sigs := s.Snapshot()
	if len(sigs) != 1 || sigs[0].Confidence != 1.0 {
		t.Fatalf("expected first Upsert to insert with confidence 1.0, got %+v", sigs)
	}

	s.Upsert(key, CategoryMalware, RiskHigh, 0.0, now)
	sigs = s.Snapshot()
	want := 0.8 * 1.0
	if sigs[0].Confidence != want {
		t.Errorf("blended confidence = %v, want %v", sigs[0].Confidence, want)
	}
}

func TestSignatureStoreLookupSkipsStale(t *testing.T) {
	s := NewSignatureStore(time.Millisecond)
	key := SignatureKey{Reason: "dga", FilterID: "f1"}
	s.Upsert(key, CategoryMalware, RiskHigh, 0.95, time.Now())
	time.Sleep(5 * time.Millisecond)

	if _, ok := s.lookup([]SignatureKey{key}, time.Now()); ok {
		t.Error("expected a stale signature to be excluded from lookup")
	}
}

func TestSignatureStoreLookupPrefersHigherConfidence(t *testing.T) {
	s := NewSignatureStore(time.Hour)
	now := time.Now()
	broad := SignatureKey{Reason: "dga"}
	specific := SignatureKey{Reason: "dga", FilterID: "f1", RulePrefix: "rule", ClientClass: "home"}
	s.Upsert(broad, CategoryTracker, RiskLow, 0.5, now)
	s.Upsert(specific, CategoryMalware, RiskCritical, 0.95, now)

	best, ok := s.lookup([]SignatureKey{specific, broad, {Reason: "dga", RulePrefix: "rule"}}, now)
	if !ok {
		t.Fatal("expected a match")
	}
	if best.Category != CategoryMalware {
		t.Errorf("expected the higher-confidence specific signature to win, got %q", best.Category)
	}
}

func TestMetadataClassifierInconclusiveWithoutSignatureOrKeyword(t *testing.T) {
	store := NewSignatureStore(time.Hour)
	cc := NewClientClassifier(nil)
	m := NewMetadataClassifier(store, cc, 0.9)

	v, escalate := m.Classify("wikipedia.org", UpstreamEvent{FilterReason: "unknown"}, time.Now())
	if v.Conclusive || escalate {
		t.Errorf("expected an inconclusive verdict with no keyword or signature match, got %+v escalate=%v", v, escalate)
	}
}

func TestMetadataClassifierSignatureOutranksNameKeyword(t *testing.T) {
	// "ads.example.com" would match the tracker keyword rule on its own,
	// but a signature that already cleared the threshold must win per
	// §4.4's decreasing-specificity probe order (signatures before
	// keyword fallback).
	store := NewSignatureStore(time.Hour)
	cc := NewClientClassifier(map[string]string{"192.168.1.0/24": "home"})
	m := NewMetadataClassifier(store, cc, 0.9)
	ev := UpstreamEvent{FilterReason: "known-good", FilterID: "f1", Client: "192.168.1.5"}

	key := m.SignatureKeyFor(ev)
	store.Upsert(key, CategorySystem, RiskLow, 0.97, time.Now())

	v, escalate := m.Classify("ads.example.com", ev, time.Now())
	if !v.Conclusive || v.Category != CategorySystem || escalate {
		t.Errorf("expected the established signature to outrank the coincidental keyword match, got %+v escalate=%v", v, escalate)
	}
}

func TestMetadataClassifierConclusiveOnHighConfidenceSignature(t *testing.T) {
	store := NewSignatureStore(time.Hour)
	cc := NewClientClassifier(map[string]string{"192.168.1.0/24": "home"})
	m := NewMetadataClassifier(store, cc, 0.9)
	ev := UpstreamEvent{FilterReason: "dga", FilterID: "f1", Client: "192.168.1.5"}

	key := m.SignatureKeyFor(ev)
	store.Upsert(key, CategoryMalware, RiskCritical, 0.95, time.Now())

	v, _ := m.Classify("zzqxwv12.com", ev, time.Now())
	if !v.Conclusive || v.Category != CategoryMalware {
		t.Errorf("expected a conclusive signature match, got %+v", v)
	}
}

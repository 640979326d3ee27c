/*
File: learner.go
Description: Pattern Learner. Observes committed Verdicts and updates the
             Signature store; snapshots to disk on a timer and on clean
             shutdown using the same atomic write-then-rename pattern as
             hosts_loader.go's disk cache, JSON-encoded per spec §9's
             "source's persistence is JSON-on-disk; any format is
             acceptable provided atomic rewrite is preserved."
*/

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// signatureSnapshotMagic versions the signature snapshot the same way
// diskCacheMagic versions the disk cache: a leading magic+version byte
// sequence so a format change or foreign file is rejected outright
// rather than silently misdecoded.
const signatureSnapshotMagic = "SIG01"

type PatternLearner struct {
	store        *SignatureStore
	classifier   *MetadataClassifier
	snapshotPath string
}

func NewPatternLearner(store *SignatureStore, classifier *MetadataClassifier, snapshotPath string) *PatternLearner {
	return &PatternLearner{store: store, classifier: classifier, snapshotPath: snapshotPath}
}

// Observe applies §4.8's policy: only Verdicts with source Reasoning, or
// Metadata with confidence >= 0.9, feed the signature store.
func (p *PatternLearner) Observe(v Verdict, ev UpstreamEvent, observedConfidence float64) {
	if v.Source != SourceReasoning && v.Source != SourceMetadata {
		return
	}
	if v.Source == SourceMetadata && observedConfidence < 0.9 {
		return
	}
	key := p.classifier.SignatureKeyFor(ev)
	p.store.Upsert(key, v.Category, v.Risk, observedConfidence, time.Now())
}

// BaselineSignatures returns the cold-start seed set: a handful of
// pre-learned, high-confidence signatures shipped for immediate
// intelligence before the Pattern Learner has observed anything of its
// own, translated from the original classifier's `_seed_patterns()`
// (Google/gstatic infrastructure, Microsoft telemetry, and a wildcard
// `.xyz` malware rule).
func BaselineSignatures(now time.Time) []Signature {
	seed := []struct {
		reason     string
		rulePrefix string
		category   string
		risk       Risk
	}{
		{"Processed", "||googleapis.com^", CategorySystem, RiskLow},
		{"Processed", "||gstatic.com^", CategorySystem, RiskLow},
		{"Blocked", "||telemetry.microsoft.com^", CategoryTracker, RiskMedium},
		{"Blocked", "||settings-win.data.microsoft.com^", CategoryTracker, RiskMedium},
		{"Blocked", "||*.xyz^", CategoryMalware, RiskHigh},
	}
	out := make([]Signature, 0, len(seed))
	for _, s := range seed {
		out = append(out, Signature{
			Key:        SignatureKey{Reason: s.reason, RulePrefix: s.rulePrefix},
			Category:   s.category,
			Risk:       s.risk,
			Confidence: 0.95,
			Hits:       100,
			LastSeen:   now,
		})
	}
	return out
}

// LoadSeed loads signatures from disk on startup; a missing file yields
// the caller-provided baseline set unchanged.
func (p *PatternLearner) LoadSeed(baseline []Signature) {
	data, err := os.ReadFile(p.snapshotPath)
	if err != nil {
		p.store.LoadSeed(baseline)
		return
	}
	if len(data) < len(signatureSnapshotMagic) || string(data[:len(signatureSnapshotMagic)]) != signatureSnapshotMagic {
		LogWarn("[LEARNER] signature snapshot missing/mismatched magic, using baseline")
		p.store.LoadSeed(baseline)
		return
	}
	var sigs []Signature
	if err := json.Unmarshal(data[len(signatureSnapshotMagic):], &sigs); err != nil {
		LogWarn("[LEARNER] failed to decode signature snapshot, using baseline: %v", err)
		p.store.LoadSeed(baseline)
		return
	}
	p.store.LoadSeed(sigs)
	LogInfo("[LEARNER] loaded %d signatures from %s", len(sigs), p.snapshotPath)
}

func (p *PatternLearner) Snapshot() {
	if p.snapshotPath == "" {
		return
	}
	sigs := p.store.Snapshot()
	body, err := json.MarshalIndent(sigs, "", "  ")
	if err != nil {
		LogWarn("[LEARNER] failed to marshal signatures: %v", err)
		return
	}
	data := append([]byte(signatureSnapshotMagic), body...)
	dir := filepath.Dir(p.snapshotPath)
	tmp, err := os.CreateTemp(dir, "signatures_tmp_*")
	if err != nil {
		LogWarn("[LEARNER] failed to create snapshot temp file: %v", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), p.snapshotPath); err != nil {
		LogWarn("[LEARNER] failed to install signature snapshot: %v", err)
		os.Remove(tmp.Name())
		return
	}
	LogDebug("[LEARNER] snapshotted %d signatures to %s", len(sigs), p.snapshotPath)
}

func (p *PatternLearner) RunSnapshotter(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.Snapshot()
		case <-done:
			LogInfo("[LEARNER] flushing signatures on shutdown")
			p.Snapshot()
			return
		}
	}
}

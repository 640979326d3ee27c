/*
File: classifier.go
Description: Metadata Classifier and the Signature store it reads.
             Client-class derivation reuses cidranger.Ranger the way
             hosts.go builds its filter ranger, but here it classifies a
             client IP into a named segment (home/guest/iot) rather than
             matching against a blocklist.
*/

package main

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yl2chen/cidranger"
)

// --- Client class derivation ---

type classEntry struct {
	cidranger.RangerEntry
	network net.IPNet
	class   string
}

func newClassEntry(network net.IPNet, class string) classEntry {
	return classEntry{network: network, class: class}
}

func (e classEntry) Network() net.IPNet { return e.network }

// ClientClassifier maps a client IP to a coarse network segment.
type ClientClassifier struct {
	ranger cidranger.Ranger
}

func NewClientClassifier(segments map[string]string) *ClientClassifier {
	r := cidranger.NewPCTrieRanger()
	for cidr, class := range segments {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			LogWarn("[CLASSIFIER] invalid client segment CIDR %q: %v", cidr, err)
			continue
		}
		_ = r.Insert(newClassEntry(*ipnet, class))
	}
	return &ClientClassifier{ranger: r}
}

func (c *ClientClassifier) ClassOf(clientIP string) string {
	if c == nil || clientIP == "" {
		return "unknown"
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "unknown"
	}
	entries, err := c.ranger.ContainingNetworks(ip)
	if err != nil || len(entries) == 0 {
		return "unknown"
	}
	return entries[len(entries)-1].(classEntry).class
}

// --- Name-keyword priors (hardcoded, never learned over) ---

var privacyKeywords = []string{"geo", "location", "gps", "telemetry"}
var trackerKeywords = []string{"pixel", "metrics", "collect", "analytics", "ads", "doubleclick"}

// firstLabel returns the leftmost dot-separated label of a Domain
// Fingerprint, the part most likely to carry a vendor/CDN token.
func firstLabel(domain string) string {
	if idx := strings.IndexByte(domain, '.'); idx > 0 {
		return domain[:idx]
	}
	return domain
}

func matchNameKeywords(domain string) (category string, risk Risk, escalate bool, matched bool) {
	lower := strings.ToLower(domain)

	// Known-good infrastructure/CDN tokens never trigger a keyword rule,
	// so e.g. a "metrics.some-cdn.com" host isn't flagged as a tracker.
	if _, common := commonLabels[firstLabel(lower)]; common {
		return "", RiskUnknown, false, false
	}

	for _, kw := range privacyKeywords {
		if strings.Contains(lower, kw) {
			return CategoryPrivacy, RiskHigh, true, true
		}
	}
	for label := range highRiskLabels {
		if strings.Contains(lower, label) {
			return CategoryMalware, RiskCritical, false, true
		}
	}
	for _, kw := range trackerKeywords {
		if strings.Contains(lower, kw) {
			return CategoryTracker, RiskMedium, false, true
		}
	}
	return "", RiskUnknown, false, false
}

// --- Signature store ---

type SignatureStore struct {
	mu         sync.RWMutex
	byKey      map[SignatureKey]*Signature
	staleAfter time.Duration
}

func NewSignatureStore(staleAfter time.Duration) *SignatureStore {
	return &SignatureStore{byKey: make(map[SignatureKey]*Signature), staleAfter: staleAfter}
}

func (s *SignatureStore) LoadSeed(sigs []Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range sigs {
		sig := sigs[i]
		s.byKey[sig.Key] = &sig
	}
}

func (s *SignatureStore) Snapshot() []Signature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Signature, 0, len(s.byKey))
	for _, sig := range s.byKey {
		out = append(out, *sig)
	}
	return out
}

// Upsert applies the Pattern Learner's blend-or-insert policy (§4.8).
func (s *SignatureStore) Upsert(key SignatureKey, observedCategory string, observedRisk Risk, observedConfidence float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig, ok := s.byKey[key]; ok {
		sig.Hits++
		sig.LastSeen = now
		sig.Confidence = 0.8*sig.Confidence + 0.2*observedConfidence
		sig.Category = observedCategory
		sig.Risk = observedRisk
		return
	}
	s.byKey[key] = &Signature{
		Key:        key,
		Category:   observedCategory,
		Risk:       observedRisk,
		Confidence: observedConfidence,
		Hits:       1,
		LastSeen:   now,
	}
}

func (s *SignatureStore) isStale(sig *Signature, now time.Time) bool {
	return now.Sub(sig.LastSeen) > s.staleAfter
}

// lookup probes at decreasing specificity and returns the
// highest-confidence non-stale match, ties broken by most recent
// LastSeen.
func (s *SignatureStore) lookup(keys []SignatureKey, now time.Time) (*Signature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Signature
	for _, k := range keys {
		if sig, ok := s.byKey[k]; ok && !s.isStale(sig, now) {
			if best == nil || sig.Confidence > best.Confidence ||
				(sig.Confidence == best.Confidence && sig.LastSeen.After(best.LastSeen)) {
				cp := *sig
				best = &cp
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// --- Metadata Classifier ---

type MetadataClassifier struct {
	store     *SignatureStore
	classifier *ClientClassifier
	threshold float64
}

func NewMetadataClassifier(store *SignatureStore, cc *ClientClassifier, threshold float64) *MetadataClassifier {
	return &MetadataClassifier{store: store, classifier: cc, threshold: threshold}
}

func rulePrefix(rule string) string {
	if idx := strings.IndexAny(rule, " \t/"); idx > 0 {
		return rule[:idx]
	}
	return rule
}

func (m *MetadataClassifier) buildKeys(ev UpstreamEvent) ([]SignatureKey, string) {
	class := m.classifier.ClassOf(ev.Client)
	prefix := rulePrefix(ev.FilterRule)
	return []SignatureKey{
		{Reason: ev.FilterReason, FilterID: ev.FilterID, RulePrefix: prefix, ClientClass: class},
		{Reason: ev.FilterReason, RulePrefix: prefix},
		{Reason: ev.FilterReason},
	}, class
}

// Classify implements §4.4's algorithm. It returns a conclusive
// EngineVerdict, or Conclusive=false ("inconclusive") when no signature
// clears the threshold and no name-keyword rule fires.
func (m *MetadataClassifier) Classify(domain string, ev UpstreamEvent, now time.Time) (EngineVerdict, bool /* escalatePrivacy */) {
	keys, _ := m.buildKeys(ev)
	if sig, ok := m.store.lookup(keys, now); ok && sig.Confidence >= m.threshold {
		return EngineVerdict{Conclusive: true, Risk: sig.Risk, Category: sig.Category, Summary: "metadata signature match", Confidence: sig.Confidence}, false
	}

	if category, risk, escalate, matched := matchNameKeywords(domain); matched {
		summary := "keyword match: " + category
		return EngineVerdict{Conclusive: !escalate, Risk: risk, Category: category, Summary: summary, Confidence: 1.0}, escalate
	}

	return EngineVerdict{Conclusive: false}, false
}

func (m *MetadataClassifier) SignatureKeyFor(ev UpstreamEvent) SignatureKey {
	class := m.classifier.ClassOf(ev.Client)
	return SignatureKey{Reason: ev.FilterReason, FilterID: ev.FilterID, RulePrefix: rulePrefix(ev.FilterRule), ClientClass: class}
}

/*
File: heuristics.go
Description: Fast statistical features of a bare domain name (entropy,
             digit ratio, vowel ratio, TLD reputation) and the adaptive
             entropy threshold that calibrates the DGA-like verdict rule.
             Entropy math is lifted from the teacher's zero-alloc
             calculateEntropy; TLD reputation reuses its highRiskTLDs map.
*/

package main

import (
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

const (
	tldWeightSafe     = 0.7
	tldWeightDefault  = 1.0
	tldWeightHighRisk = 1.5
)

// DomainFeatures is the bare-name feature vector computed by the
// Heuristic Engine and reused by the Anomaly Engine.
type DomainFeatures struct {
	Length     float64
	Entropy    float64
	DigitRatio float64
	VowelRatio float64
	TLDWeight  float64
	TLDToken   string
}

// shannonEntropy computes base-2 Shannon entropy over the byte frequency
// distribution of s.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	var entropy float64
	total := float64(len(s))
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / total
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func digitRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(len(s))
}

func vowelRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	vowels := 0
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		}
	}
	return float64(vowels) / float64(len(s))
}

func tldWeight(domain string) (string, float64) {
	suffix, _ := publicsuffix.PublicSuffix(domain)
	if _, bad := highRiskTLDs[suffix]; bad {
		return suffix, tldWeightHighRisk
	}
	if _, good := safeTLDs[suffix]; good {
		return suffix, tldWeightSafe
	}
	return suffix, tldWeightDefault
}

// ComputeFeatures computes the full feature vector for a Domain
// Fingerprint. Entropy is computed on the whole string; digit_ratio is
// deliberately never blended into entropy (spec §9 open question).
func ComputeFeatures(domain string) DomainFeatures {
	tld, weight := tldWeight(domain)
	return DomainFeatures{
		Length:     float64(len(domain)),
		Entropy:    shannonEntropy(domain),
		DigitRatio: digitRatio(domain),
		VowelRatio: vowelRatio(domain),
		TLDWeight:  weight,
		TLDToken:   tld,
	}
}

// HeuristicEngine evaluates §4.5's verdict rule and maintains the
// adaptive entropy threshold.
type HeuristicEngine struct {
	mu               sync.Mutex
	entropyThreshold float64
	digitThreshold   float64
	window           []float64
	windowSize       int
}

func NewHeuristicEngine(cfg HeuristicConfig) *HeuristicEngine {
	return &HeuristicEngine{
		entropyThreshold: cfg.InitialEntropyThreshold,
		digitThreshold:   cfg.DigitRatioThreshold,
		windowSize:       cfg.TuningWindow,
	}
}

// EngineVerdict is an inconclusive/conclusive tier result shared by every
// tier below Cache. Confidence is only meaningful for a Metadata-tier
// signature match (the value the Pattern Learner's ingestion gate checks
// against, per spec §4.8); other tiers set it to 1.0 since they have no
// notion of partial confidence.
type EngineVerdict struct {
	Conclusive bool
	Risk       Risk
	Category   string
	Summary    string
	Confidence float64
}

// Evaluate applies the verdict rule and records the observed entropy for
// adaptive tuning.
func (h *HeuristicEngine) Evaluate(f DomainFeatures) EngineVerdict {
	h.mu.Lock()
	threshold := h.entropyThreshold
	digitThresh := h.digitThreshold
	h.recordLocked(f.Entropy)
	h.mu.Unlock()

	if f.Entropy >= threshold && f.DigitRatio >= digitThresh {
		return EngineVerdict{Conclusive: true, Risk: RiskHigh, Category: CategoryMalware, Summary: "DGA-like", Confidence: 1.0}
	}
	if f.Entropy >= threshold {
		return EngineVerdict{Conclusive: true, Risk: RiskMedium, Category: CategoryUnknown, Summary: "elevated entropy", Confidence: 1.0}
	}
	return EngineVerdict{Conclusive: false}
}

// recordLocked appends an entropy observation and retunes the threshold
// every N=windowSize domains to the 90th percentile of observed values,
// clamped to [3.0, 4.5].
func (h *HeuristicEngine) recordLocked(entropy float64) {
	h.window = append(h.window, entropy)
	if len(h.window) < h.windowSize {
		return
	}
	sorted := append([]float64(nil), h.window...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * 0.90)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	p90 := sorted[idx]
	if p90 < 3.0 {
		p90 = 3.0
	}
	if p90 > 4.5 {
		p90 = 4.5
	}
	if p90 != h.entropyThreshold {
		LogInfo("[HEURISTIC] adaptive entropy threshold %.3f -> %.3f (p90 of %d samples)", h.entropyThreshold, p90, len(sorted))
		h.entropyThreshold = p90
	}
	h.window = h.window[:0]
}

func (h *HeuristicEngine) Threshold() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entropyThreshold
}

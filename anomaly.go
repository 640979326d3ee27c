/*
File: anomaly.go
Description: Incremental outlier detector over the bare-name feature
             vector. Implemented as a per-feature Welford online
             tracker ensemble rather than a literal isolation forest:
             spec §4.6 permits "any equivalent unsupervised outlier
             model satisfying the contract", and Welford's algorithm is
             the streaming-statistics primitive this corpus actually
             ships (grimm-is-flywall's sentinel package), giving O(1)
             memory per feature with no retraining pass.
*/

package main

import (
	"math"
	"sort"
	"sync"
)

// welfordTracker keeps a running mean/variance using Welford's online
// algorithm: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance
type welfordTracker struct {
	count int64
	mean  float64
	m2    float64
}

func (t *welfordTracker) update(v float64) {
	t.count++
	delta := v - t.mean
	t.mean += delta / float64(t.count)
	delta2 := v - t.mean
	t.m2 += delta * delta2
}

func (t *welfordTracker) variance() float64 {
	if t.count < 2 {
		return 0
	}
	return t.m2 / float64(t.count-1)
}

func (t *welfordTracker) stddev() float64 {
	return math.Sqrt(t.variance())
}

// zscore returns how many standard deviations v is from the mean. A
// zero-variance tracker with a differing value is maximally anomalous.
func (t *welfordTracker) zscore(v float64) float64 {
	sd := t.stddev()
	if sd == 0 {
		if v == t.mean {
			return 0
		}
		return 10.0
	}
	return (v - t.mean) / sd
}

// AnomalyEngine treats each domain's feature vector as five independent
// streams and scores by combining per-feature Z-scores into a single
// signed anomaly score, where lower = more anomalous (score = -maxAbsZ).
type AnomalyEngine struct {
	mu sync.Mutex

	length     welfordTracker
	entropy    welfordTracker
	digitRatio welfordTracker
	vowelRatio welfordTracker
	tldWeight  welfordTracker

	minSamples int
	samples    int64
	fitCount   int64
	nextRefit  int64

	recentScores []float64
	threshold    float64
}

func NewAnomalyEngine(cfg AnomalyConfig) *AnomalyEngine {
	return &AnomalyEngine{
		minSamples: cfg.MinSamples,
		nextRefit:  int64(cfg.MinSamples),
		threshold:  cfg.InitialThreshold,
	}
}

// FitIncremental appends a sample to the trackers. Refit happens at
// geometric intervals (every doubling of size up to 1000, then every
// 1000 samples), matching spec §4.6.
func (a *AnomalyEngine) FitIncremental(f DomainFeatures) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.length.update(f.Length)
	a.entropy.update(f.Entropy)
	a.digitRatio.update(f.DigitRatio)
	a.vowelRatio.update(f.VowelRatio)
	a.tldWeight.update(f.TLDWeight)
	a.samples++

	if a.samples >= a.nextRefit {
		a.fitCount++
		if a.nextRefit < 1000 {
			a.nextRefit *= 2
		} else {
			a.nextRefit += 1000
		}
	}
}

// Score returns (score, ok). ok is false before min_samples is reached,
// per the cold-start contract.
func (a *AnomalyEngine) Score(f DomainFeatures) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.samples < int64(a.minSamples) {
		return 0.0, false
	}

	maxAbsZ := 0.0
	for _, z := range []float64{
		a.length.zscore(f.Length),
		a.entropy.zscore(f.Entropy),
		a.digitRatio.zscore(f.DigitRatio),
		a.vowelRatio.zscore(f.VowelRatio),
		a.tldWeight.zscore(f.TLDWeight),
	} {
		if math.Abs(z) > maxAbsZ {
			maxAbsZ = math.Abs(z)
		}
	}
	score := -maxAbsZ / 3.0 // normalize so ~3 std devs maps to score -1.0
	a.recordScoreLocked(score)
	return score, true
}

func (a *AnomalyEngine) recordScoreLocked(score float64) {
	a.recentScores = append(a.recentScores, score)
	if len(a.recentScores) > 2000 {
		a.recentScores = a.recentScores[len(a.recentScores)-2000:]
	}
	if len(a.recentScores) >= 200 {
		sorted := append([]float64(nil), a.recentScores...)
		sort.Float64s(sorted)
		idx := int(float64(len(sorted)) * 0.05)
		p5 := sorted[idx]
		if p5 < -0.3 {
			p5 = -0.3
		}
		if p5 > 0.0 {
			p5 = 0.0
		}
		a.threshold = p5
	}
}

// IsAnomaly reports whether score is below the adaptive threshold.
// Returns false unconditionally before min_samples is reached.
func (a *AnomalyEngine) IsAnomaly(f DomainFeatures) (float64, bool, bool) {
	score, ok := a.Score(f)
	if !ok {
		return 0.0, false, false
	}
	a.mu.Lock()
	thresh := a.threshold
	a.mu.Unlock()
	return score, score < thresh, true
}

type AnomalyEngineStats struct {
	SamplesSeen int64   `json:"samples_seen"`
	FitCount    int64   `json:"fit_count"`
	Threshold   float64 `json:"threshold"`
}

func (a *AnomalyEngine) Stats() AnomalyEngineStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AnomalyEngineStats{SamplesSeen: a.samples, FitCount: a.fitCount, Threshold: a.threshold}
}

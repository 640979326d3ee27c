/*
File: orchestrator.go
Description: Sequences the tiers per spec §4.9's state machine and
             commits exactly one Verdict per admitted domain. Shaped
             after process.go's per-request pipeline: panic recovery,
             sequential checks with early return, and a single
             structured decision log per completed domain.
*/

package main

import (
	"context"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type LedgerSink interface {
	Append(ctx context.Context, v Verdict) error
}

// domainFlightShards is sized for the concurrency this pipeline actually
// sees on one domain: at most a handful of manual submissions racing a
// poller tick for the same Domain Fingerprint, never the thousands of
// distinct in-flight keys a general-purpose cache-fill layer would need.
const domainFlightShards = 128

// domainFlightGroup shards singleflight.Group by Domain Fingerprint so
// concurrent callers analyzing the same domain (a manual submission
// racing a poller tick, or two manual submissions racing each other)
// share one tiered pipeline run and one committed Verdict, without every
// unrelated domain contending on a single Group's mutex.
type domainFlightGroup struct {
	shards []*singleflight.Group
	seed   maphash.Seed
}

var domainFlightHashers = sync.Pool{
	New: func() any { return new(maphash.Hash) },
}

func newDomainFlightGroup() *domainFlightGroup {
	g := &domainFlightGroup{
		shards: make([]*singleflight.Group, domainFlightShards),
		seed:   maphash.MakeSeed(),
	}
	for i := range g.shards {
		g.shards[i] = &singleflight.Group{}
	}
	return g
}

func (g *domainFlightGroup) Do(domain string, fn func() (interface{}, error)) (interface{}, error, bool) {
	h := domainFlightHashers.Get().(*maphash.Hash)
	h.Reset() // reused hashers panic on SetSeed without a prior Reset
	h.SetSeed(g.seed)
	h.WriteString(domain)
	idx := h.Sum64() & (domainFlightShards - 1)
	domainFlightHashers.Put(h)

	return g.shards[idx].Do(domain, fn)
}

type Orchestrator struct {
	cache     *VerdictCache
	dedup     *Deduplicator
	flight    *domainFlightGroup
	metadata  *MetadataClassifier
	heuristic *HeuristicEngine
	anomaly   *AnomalyEngine
	reasoning ReasoningClient
	breaker   *CircuitBreaker
	learner   *PatternLearner
	buffer    *VerdictBuffer
	fanout    *PushFanout
	ledger    LedgerSink
	ledgerOn  bool

	localDecisions atomic.Uint64
	cloudDecisions atomic.Uint64

	perDomainBudget time.Duration
	reasoningBudget time.Duration
}

func NewOrchestrator(cache *VerdictCache, dedup *Deduplicator, metadata *MetadataClassifier,
	heuristic *HeuristicEngine, anomaly *AnomalyEngine, reasoning ReasoningClient, breaker *CircuitBreaker,
	learner *PatternLearner, buffer *VerdictBuffer, fanout *PushFanout, ledger LedgerSink, ledgerOn bool) *Orchestrator {
	return &Orchestrator{
		cache: cache, dedup: dedup, flight: newDomainFlightGroup(), metadata: metadata, heuristic: heuristic, anomaly: anomaly,
		reasoning: reasoning, breaker: breaker, learner: learner, buffer: buffer, fanout: fanout,
		ledger: ledger, ledgerOn: ledgerOn,
		perDomainBudget: 5 * time.Second,
		reasoningBudget: 10 * time.Second,
	}
}

// Process runs one domain through the pipeline to completion, producing
// exactly one Verdict or one validation error, per the core invariant in
// spec §3. Manual requests and poller-sourced events share this same
// entry point.
func (o *Orchestrator) Process(ctx context.Context, raw string, ev UpstreamEvent, sessionID string) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			LogError("[ORCH] panic while processing domain, committing Fallback: %v", r)
			v = o.fallbackVerdict(ev, RiskLow, CategoryUnknown, "recovered from internal panic")
			err = nil
		}
	}()

	domain, verr := NormalizeFingerprint(raw)
	if verr != nil {
		return Verdict{}, verr
	}
	ev.Domain = domain

	if cached, ok := o.cache.Lookup(domain); ok {
		cached.Source = SourceCache
		return cached, nil
	}

	// Concurrent callers for the same domain (a manual submission racing
	// a poller tick, or several manual submissions racing each other)
	// share one pipeline run instead of each burning a Reasoning call;
	// every caller gets the same committed Verdict, per §4.2's coalescing
	// intent extended to the whole tier stack rather than just Cache.
	res, err, _ := o.flight.Do(domain, func() (interface{}, error) {
		if !o.dedup.Admit(domain) {
			// A poller re-enqueue inside the dedup window with no owning
			// in-flight call; per §4.2 this is dropped silently rather
			// than re-analyzed.
			return o.fallbackVerdict(ev, RiskLow, CategoryUnknown, "deduplicated"), nil
		}
		defer o.dedup.Complete(domain)

		tierCtx, cancel := context.WithTimeout(ctx, o.perDomainBudget)
		defer cancel()

		verdict := o.runTiers(tierCtx, domain, ev)
		verdict.SessionID = sessionID
		o.commit(tierCtx, verdict, ev)
		return verdict, nil
	})
	if err != nil {
		return Verdict{}, err
	}
	return res.(Verdict), nil
}

func (o *Orchestrator) runTiers(ctx context.Context, domain string, ev UpstreamEvent) Verdict {
	now := time.Now()

	metaVerdict, privacyEscalate := o.metadata.Classify(domain, ev, now)
	if metaVerdict.Conclusive && !privacyEscalate {
		o.localDecisions.Add(1)
		return o.finalize(domain, ev, metaVerdict, SourceMetadata, 0, 0)
	}

	features := ComputeFeatures(domain)
	heurVerdict := o.heuristic.Evaluate(features)
	if heurVerdict.Conclusive && !privacyEscalate {
		o.localDecisions.Add(1)
		return o.finalize(domain, ev, heurVerdict, SourceHeuristic, features.Entropy, 0)
	}

	o.anomaly.FitIncremental(features)
	score, isAnom, hasScore := o.anomaly.IsAnomaly(features)
	anomalyConclusive := hasScore && isAnom

	// Both the "conclusive" and "inconclusive" Anomaly rows route to
	// Reasoning whenever the breaker isn't Open and the process isn't
	// already under load; they differ only in which Verdict they fall
	// back to when Reasoning is skipped. Load shedding is checked before
	// the breaker is asked, so a shed cycle never consumes a Half-Open
	// probe slot that then goes unrecorded.
	underLoad := GlobalLimiter != nil && GlobalLimiter.IsUnderLoad()
	var allowed, isProbe bool
	if underLoad {
		LogDebug("[ORCH] shedding reasoning call for domain %s, system under load", domain)
	} else {
		allowed, isProbe = o.breaker.Allow()
	}
	if allowed {
		hint := ""
		if anomalyConclusive {
			hint = "anomaly detected"
		}
		if v, ok := o.callReasoning(ctx, domain, features, score, ev, hint); ok {
			o.recordBreakerOutcome(true, isProbe)
			o.cloudDecisions.Add(1)
			return v
		}
		o.recordBreakerOutcome(false, isProbe)
	}

	o.localDecisions.Add(1)
	switch {
	case anomalyConclusive:
		return o.finalize(domain, ev, EngineVerdict{
			Conclusive: true, Risk: RiskHigh, Category: "Zero-Day Suspect",
			Summary: "anomalous feature vector, reasoning unavailable",
		}, SourceAnomaly, features.Entropy, score)
	case privacyEscalate:
		return o.finalize(domain, ev, EngineVerdict{
			Conclusive: true, Risk: RiskHigh, Category: CategoryPrivacy,
			Summary: "degraded mode: reasoning unavailable for privacy-escalated domain",
		}, SourceFallback, features.Entropy, score)
	default:
		return o.finalize(domain, ev, EngineVerdict{
			Conclusive: true, Risk: RiskLow, Category: CategoryUnknown,
			Summary: "degraded mode: no tier conclusive, reasoning unavailable",
		}, SourceFallback, features.Entropy, score)
	}
}

func (o *Orchestrator) callReasoning(ctx context.Context, domain string, f DomainFeatures, anomalyScore float64, ev UpstreamEvent, hint string) (Verdict, bool) {
	rctx, cancel := context.WithTimeout(ctx, o.reasoningBudget)
	defer cancel()

	meta := &UpstreamMeta{FilterReason: ev.FilterReason, FilterRule: ev.FilterRule, FilterID: ev.FilterID, Client: ev.Client}
	resp, err := o.reasoning.Analyze(rctx, ReasoningFeatures{
		Domain: domain, Entropy: f.Entropy, DigitRatio: f.DigitRatio, AnomalyScore: anomalyScore,
		UpstreamMeta: meta, Hint: hint,
	})
	if err != nil {
		LogWarn("[ORCH] reasoning call failed for domain, falling back: %v", err)
		return Verdict{}, false
	}

	v := Verdict{
		Domain: domain, Risk: resp.toRisk(), Category: mapReasoningCategory(resp.Category),
		Summary: resp.Explanation, Entropy: f.Entropy, AnomalyScore: anomalyScore,
		IsAnomaly: anomalyScore < 0, Source: SourceReasoning, Confidence: 1.0,
		UpstreamMeta: meta, DecidedAt: time.Now(),
	}
	return v, true
}

func mapReasoningCategory(c string) string {
	if c == "Ad" {
		return CategoryAdvertising
	}
	return c
}

func (o *Orchestrator) recordBreakerOutcome(success bool, isProbe bool) {
	_ = isProbe
	if success {
		o.breaker.RecordSuccess()
	} else {
		o.breaker.RecordFailure()
	}
}

func (o *Orchestrator) finalize(domain string, ev UpstreamEvent, tier EngineVerdict, source VerdictSource, entropy float64, anomalyScore float64) Verdict {
	meta := &UpstreamMeta{FilterReason: ev.FilterReason, FilterRule: ev.FilterRule, FilterID: ev.FilterID, Client: ev.Client}
	return Verdict{
		Domain: domain, Risk: tier.Risk, Category: tier.Category, Summary: tier.Summary,
		Entropy: entropy, AnomalyScore: anomalyScore, IsAnomaly: anomalyScore < 0,
		Source: source, Confidence: tier.Confidence, UpstreamMeta: meta, DecidedAt: time.Now(),
	}
}

func (o *Orchestrator) fallbackVerdict(ev UpstreamEvent, risk Risk, category string, summary string) Verdict {
	return Verdict{
		Domain: ev.Domain, Risk: risk, Category: category, Summary: summary,
		Source: SourceFallback, DecidedAt: time.Now(),
	}
}

// commit implements the terminal "Committed" transition's effects:
// cache-store, buffer append, subscriber push, best-effort ledger write,
// Pattern Learner observation.
func (o *Orchestrator) commit(ctx context.Context, v Verdict, ev UpstreamEvent) {
	if v.Source != SourceCache {
		o.cache.Store(v.Domain, v)
	}
	o.buffer.Append(v)
	o.fanout.Publish(v)

	if o.ledgerOn && o.ledger != nil {
		go func() {
			lctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := o.ledger.Append(lctx, v); err != nil {
				LogWarn("[ORCH] ledger append failed for committed verdict: %v", err)
			}
		}()
	}

	o.learner.Observe(v, ev, v.Confidence)
}

func (o *Orchestrator) AutonomyStats() (local, cloud, total uint64, autonomy float64) {
	local = o.localDecisions.Load()
	cloud = o.cloudDecisions.Load()
	total = local + cloud
	if total == 0 {
		return local, cloud, total, 1.0
	}
	return local, cloud, total, float64(local) / float64(total)
}

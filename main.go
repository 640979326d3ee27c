/*
File: main.go
Description: Entrypoint. Wires configuration, logging, every pipeline
             component, the worker pool, the poller, and the HTTP surface
             together, and drains them in reverse dependency order on
             SIGINT/SIGTERM. Follows the teacher's pervasive
             context.Context + select{ case <-ctx.Done(): } shutdown
             idiom (arp.go, limiter.go, ml_guard_process.go), wired here
             through signal.NotifyContext since the retrieved teacher
             pack carries no entrypoint of its own.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := LoadConfig(*configPath); err != nil {
		// Logger may not be initialized yet if the config file itself is
		// unreadable; fall back to stderr.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer ShutdownLogger()

	LogInfo("[MAIN] starting up")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Classifier (built first: the limiter's per-segment pacing and
	// the Metadata Classifier's Signature keys both key off it) ---
	clientClassifier := NewClientClassifier(map[string]string{
		"192.168.1.0/24":  "home",
		"192.168.50.0/24": "guest",
		"192.168.99.0/24": "iot",
	})

	InitLimiter(config.RateLimit, clientClassifier)
	go GlobalLimiter.StartCleanupRoutine(ctx)

	// --- Cache tier ---
	var disk *DiskCache
	if config.Cache.DiskPath != "" {
		disk = NewDiskCache(config.Cache.DiskPath, config.Cache.DiskCapacity, config.Cache.parsedDiskTTL)
		go disk.RunFlusher(config.Cache.parsedSweepInterval, ctx.Done())
	}
	cache := NewVerdictCache(config.Cache.MemoryCapacity, config.Cache.parsedMemoryTTL, disk)
	go cache.RunSweeper(config.Cache.parsedSweepInterval, ctx.Done())

	// --- Dedup ---
	dedup := NewDeduplicator(config.Dedup.Window, cache)

	// --- Signature store ---
	sigStore := NewSignatureStore(config.Classifier.parsedStaleAfter)
	metadataClassifier := NewMetadataClassifier(sigStore, clientClassifier, config.Classifier.MetadataThreshold)

	// --- Heuristic + Anomaly engines ---
	heuristic := NewHeuristicEngine(config.Heuristic)
	anomaly := NewAnomalyEngine(config.Anomaly)

	// --- Reasoning client + circuit breaker ---
	var reasoning ReasoningClient
	if config.Reasoning.Enabled {
		reasoning = NewHTTPReasoningClient(config.Reasoning)
	} else {
		reasoning = disabledReasoningClient{}
	}
	breaker := NewCircuitBreaker()

	// --- Pattern learner ---
	learner := NewPatternLearner(sigStore, metadataClassifier, config.Learner.SnapshotPath)
	learner.LoadSeed(BaselineSignatures(time.Now()))
	go learner.RunSnapshotter(config.Learner.parsedSnapshotInterval, ctx.Done())

	// --- Buffer + fanout ---
	buffer := NewVerdictBuffer(config.Server.HistorySize)
	fanout := NewPushFanout(config.Buffer.SubscriberQueueLen)

	// --- Ledger ---
	var ledger LedgerSink
	if config.Ledger.Enabled {
		ledger = NewNoopLedger()
	}

	orch := NewOrchestrator(cache, dedup, metadataClassifier, heuristic, anomaly, reasoning, breaker, learner, buffer, fanout, ledger, config.Ledger.Enabled)

	pool := NewWorkerPool(orch, config.Workers)
	pool.Start(ctx)

	poller := NewPoller(config.Poller, func(ev UpstreamEvent) { pool.SubmitPolled(ev) })
	go poller.Run(ctx)

	api := NewAPIServer(config.Server.ListenAddr, pool, buffer, fanout, cache, anomaly, heuristic, breaker, dedup, orch, sigStore)
	serveErrs := make(chan error, 1)
	go func() {
		if err := api.ListenAndServe(); err != nil {
			serveErrs <- err
		}
	}()

	LogInfo("[MAIN] ready")

	select {
	case <-ctx.Done():
		LogInfo("[MAIN] shutdown signal received")
	case err := <-serveErrs:
		LogError("[MAIN] http server exited unexpectedly: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		LogWarn("[MAIN] http server shutdown error: %v", err)
	}
	pool.Stop()

	learner.Snapshot()
	if disk != nil {
		disk.flush()
	}

	LogInfo("[MAIN] shutdown complete")
}

// disabledReasoningClient backs the Reasoning tier when no API key is
// configured; every call fails permanently so the Orchestrator falls
// through to its degraded-mode verdicts.
type disabledReasoningClient struct{}

func (disabledReasoningClient) Analyze(ctx context.Context, f ReasoningFeatures) (ReasoningResponse, error) {
	return ReasoningResponse{}, &PermanentError{Op: "reasoning.disabled", Err: errors.New("no reasoning endpoint configured")}
}

// NoopLedger satisfies LedgerSink when a ledger backend is configured but
// this deployment has no external ledger integration wired in; it always
// succeeds so committed Verdicts are never blocked on it.
type NoopLedger struct{}

func NewNoopLedger() *NoopLedger { return &NoopLedger{} }

func (l *NoopLedger) Append(ctx context.Context, v Verdict) error { return nil }

/*
File: httpapi.go
Description: Verdict HTTP surface: manual analysis, history browsing, a
             websocket push channel for committed Verdicts, and an
             internal stats endpoint. Timeout/header-limit shape follows
             grimm-is-flywall/internal/api/server.go's ServerConfig
             defaults; routing uses gorilla/mux and the push channel uses
             gorilla/websocket, both pack-sourced rather than stdlib.
*/

package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPServerConfig mirrors the teacher's slowloris/body-limit hardening
// defaults, applied here to the manual-analysis and history surface.
type HTTPServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

func DefaultHTTPServerConfig() HTTPServerConfig {
	return HTTPServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      1 << 20,
	}
}

var (
	metricVerdictsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "verdicts_committed_total", Help: "Committed verdicts by source"},
		[]string{"source"},
	)
	metricAnalyzeRequests = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "analyze_requests_total", Help: "Manual /analyze submissions"},
	)
	metricCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "circuit_breaker_state", Help: "0=Closed 1=Open 2=Half-Open"},
	)
)

func init() {
	prometheus.MustRegister(metricVerdictsCommitted, metricAnalyzeRequests, metricCircuitState)
}

type analyzeRequest struct {
	Domain string `json:"domain"`
}

type analyzeResponse struct {
	Verdict   Verdict `json:"verdict"`
	SessionID string  `json:"session_id"`
}

// engineThresholds reports the two tiers' current adaptive thresholds,
// per spec §6's `thresholds` stats field.
type engineThresholds struct {
	Entropy      float64 `json:"entropy"`
	AnomalyScore float64 `json:"anomaly_score"`
}

type systemStats struct {
	Cache           CacheStats         `json:"cache"`
	Anomaly         AnomalyEngineStats `json:"anomaly"`
	Breaker         string             `json:"breaker_state"`
	Local           uint64             `json:"local_decisions"`
	Cloud           uint64             `json:"cloud_decisions"`
	Total           uint64             `json:"total_decisions"`
	Autonomy        float64            `json:"autonomy_ratio"`
	InFlight        int                `json:"in_flight"`
	LearnedPatterns int                `json:"learned_patterns"`
	Thresholds      engineThresholds   `json:"thresholds"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// APIServer wires the pipeline's read-side dependencies into an
// http.Server. It never mutates pipeline state directly; all writes go
// through the WorkerPool so manual submissions share the same fairness
// scheduler as polled domains.
type APIServer struct {
	pool      *WorkerPool
	buffer    *VerdictBuffer
	fanout    *PushFanout
	cache     *VerdictCache
	anomaly   *AnomalyEngine
	heuristic *HeuristicEngine
	breaker   *CircuitBreaker
	dedup     *Deduplicator
	orch      *Orchestrator
	sigStore  *SignatureStore

	cfg    HTTPServerConfig
	server *http.Server
}

func NewAPIServer(listenAddr string, pool *WorkerPool, buffer *VerdictBuffer, fanout *PushFanout,
	cache *VerdictCache, anomaly *AnomalyEngine, heuristic *HeuristicEngine, breaker *CircuitBreaker,
	dedup *Deduplicator, orch *Orchestrator, sigStore *SignatureStore) *APIServer {
	a := &APIServer{
		pool: pool, buffer: buffer, fanout: fanout, cache: cache, anomaly: anomaly, heuristic: heuristic,
		breaker: breaker, dedup: dedup, orch: orch, sigStore: sigStore, cfg: DefaultHTTPServerConfig(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/history", a.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/manual-history", a.handleManualHistory).Methods(http.MethodGet)
	r.HandleFunc("/analyze", a.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/api/stats/system", a.handleSystemStats).Methods(http.MethodGet)
	r.HandleFunc("/ws/verdicts", a.handleWebsocket).Methods(http.MethodGet)

	a.server = &http.Server{
		Addr:              listenAddr,
		Handler:           http.MaxBytesHandler(r, a.cfg.MaxBodyBytes),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
	return a
}

func (a *APIServer) ListenAndServe() error {
	LogInfo("[HTTPAPI] listening on %s", a.server.Addr)
	return a.server.ListenAndServe()
}

func (a *APIServer) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func clientIPFromRequest(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, a.buffer.Recent(n))
}

func (a *APIServer) handleManualHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}
	n := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, a.buffer.RecentBySession(sessionID, n))
}

// handleAnalyze accepts an operator-submitted domain, assigns it a
// session id if one isn't supplied, and blocks until the pipeline
// commits a Verdict.
func (a *APIServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if GlobalLimiter != nil {
		clientIP := clientIPFromRequest(r)
		switch action, delay, reason := GlobalLimiter.Check(clientIP); action {
		case ActionDrop:
			LogWarn("[HTTPAPI] rejecting /analyze: %s", reason)
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		case ActionDelay:
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	metricAnalyzeRequests.Inc()

	v, err := a.pool.SubmitManual(r.Context(), req.Domain, sessionID)
	if err != nil {
		if _, ok := err.(*ValidationError); ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	metricVerdictsCommitted.WithLabelValues(v.Source.String()).Inc()
	writeJSON(w, http.StatusOK, analyzeResponse{Verdict: v, SessionID: sessionID})
}

func (a *APIServer) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	local, cloud, total, autonomy := a.orch.AutonomyStats()
	anomalyStats := a.anomaly.Stats()
	stats := systemStats{
		Cache:           a.cache.Stats(),
		Anomaly:         anomalyStats,
		Breaker:         a.breaker.State().String(),
		Local:           local,
		Cloud:           cloud,
		Total:           total,
		Autonomy:        autonomy,
		InFlight:        a.dedup.InFlightCount(),
		LearnedPatterns: len(a.sigStore.Snapshot()),
		Thresholds: engineThresholds{
			Entropy:      a.heuristic.Threshold(),
			AnomalyScore: anomalyStats.Threshold,
		},
	}
	switch a.breaker.State() {
	case BreakerOpen:
		metricCircuitState.Set(1)
	case BreakerHalfOpen:
		metricCircuitState.Set(2)
	default:
		metricCircuitState.Set(0)
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleWebsocket streams committed Verdicts to a subscriber for the
// lifetime of the connection. A dedicated reader goroutine drains and
// discards client frames so pong control frames are still processed.
func (a *APIServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		LogWarn("[HTTPAPI] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := a.fanout.Subscribe()
	defer a.fanout.Unsubscribe(sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case v := <-sub.queue:
			if err := conn.WriteJSON(v); err != nil {
				return
			}
		}
	}
}

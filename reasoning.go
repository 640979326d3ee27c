/*
File: reasoning.go
Description: Remote reasoning client. Outbound pacing is a
             golang.org/x/time/rate limiter, generalized from limiter.go's
             per-IP token bucket to a single client-wide budget; pooled
             HTTP transport follows upstream_pool.go's dial-unlocked/
             commit-locked shape.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ReasoningFeatures is the compact bundle sent to the remote model.
type ReasoningFeatures struct {
	Domain       string        `json:"domain"`
	Entropy      float64       `json:"entropy"`
	DigitRatio   float64       `json:"digit_ratio"`
	AnomalyScore float64       `json:"anomaly_score"`
	UpstreamMeta *UpstreamMeta `json:"upstream_meta,omitempty"`
	Hint         string        `json:"hint,omitempty"`
}

// ReasoningResponse is the typed schema the remote model must conform to.
type ReasoningResponse struct {
	RiskScore         int    `json:"risk_score"`
	Category          string `json:"category"`
	Explanation       string `json:"explanation"`
	RecommendedAction string `json:"recommended_action"`
}

func (r ReasoningResponse) toRisk() Risk {
	switch {
	case r.RiskScore >= 9:
		return RiskCritical
	case r.RiskScore >= 7:
		return RiskHigh
	case r.RiskScore >= 4:
		return RiskMedium
	case r.RiskScore >= 1:
		return RiskLow
	default:
		return RiskUnknown
	}
}

func (r ReasoningResponse) valid() bool {
	if r.RiskScore < 1 || r.RiskScore > 10 {
		return false
	}
	switch r.Category {
	case "Ad", CategoryTracker, CategoryMalware, CategoryUnknown:
		return true
	default:
		return false
	}
}

// ReasoningClient is the interface the Orchestrator depends on; a
// go.uber.org/mock-generated fake backs tests without a live endpoint.
//
//go:generate mockgen -source=reasoning.go -destination=reasoning_mock_test.go -package=main
type ReasoningClient interface {
	Analyze(ctx context.Context, features ReasoningFeatures) (ReasoningResponse, error)
}

type HTTPReasoningClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewHTTPReasoningClient(cfg ReasoningConfig) *HTTPReasoningClient {
	return &HTTPReasoningClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.parsedTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst),
	}
}

// isArchitecturalQuestion is the lightweight keyword check that decides
// whether to spend tokens on system-context prose ("JIT context",
// spec §4.7's cost-shaping note — a cost optimization, not a correctness
// property).
func isArchitecturalQuestion(hint string) bool {
	h := strings.ToLower(hint)
	for _, kw := range []string{"why", "architecture", "how does", "explain the design"} {
		if strings.Contains(h, kw) {
			return true
		}
	}
	return false
}

func (c *HTTPReasoningClient) Analyze(ctx context.Context, f ReasoningFeatures) (ReasoningResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return ReasoningResponse{}, &TransientError{Op: "reasoning.pace", Err: err}
	}

	payload := map[string]interface{}{
		"domain":   f.Domain,
		"features": f,
	}
	if isArchitecturalQuestion(f.Hint) {
		payload["context"] = "system-architecture-prose"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ReasoningResponse{}, &PermanentError{Op: "reasoning.marshal", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ReasoningResponse{}, &PermanentError{Op: "reasoning.newrequest", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return ReasoningResponse{}, &TransientError{Op: "reasoning.do", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return ReasoningResponse{}, &TransientError{Op: "reasoning.status", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return ReasoningResponse{}, &PermanentError{Op: "reasoning.status", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out ReasoningResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ReasoningResponse{}, &PermanentError{Op: "reasoning.decode", Err: err}
	}
	if !out.valid() {
		return ReasoningResponse{}, &PermanentError{Op: "reasoning.schema", Err: fmt.Errorf("response failed schema validation")}
	}
	return out, nil
}

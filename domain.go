package main

import (
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Risk is a total order over threat severity.
type Risk int

const (
	RiskUnknown Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "Low"
	case RiskMedium:
		return "Medium"
	case RiskHigh:
		return "High"
	case RiskCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// VerdictSource uniquely identifies the tier that produced a Verdict. Once
// set on a committed Verdict it is immutable.
type VerdictSource int

const (
	SourceCache VerdictSource = iota
	SourceMetadata
	SourceHeuristic
	SourceAnomaly
	SourceReasoning
	SourceFallback
)

func (s VerdictSource) String() string {
	switch s {
	case SourceCache:
		return "Cache"
	case SourceMetadata:
		return "Metadata"
	case SourceHeuristic:
		return "Heuristic"
	case SourceAnomaly:
		return "Anomaly"
	case SourceReasoning:
		return "Reasoning"
	case SourceFallback:
		return "Fallback"
	default:
		return "Unknown"
	}
}

// Known verdict categories. Category is free-form but the pipeline only
// ever assigns one of these.
const (
	CategoryTracker     = "Tracker"
	CategoryAdvertising = "Advertising"
	CategoryMalware     = "Malware"
	CategorySystem      = "System"
	CategoryPrivacy     = "Privacy"
	CategoryUnknown     = "Unknown"
)

// UpstreamEvent is one entry from the DNS sinkhole log.
type UpstreamEvent struct {
	Domain      string
	AnsweredAt  time.Time
	FilterReason string
	FilterRule  string
	FilterID    string
	Client      string
	// ManualSessionID is set only for domains submitted via POST /analyze;
	// empty for poller-sourced events.
	ManualSessionID string
}

// UpstreamMeta is the subset of an UpstreamEvent carried on a Verdict and
// used to derive Signature keys.
type UpstreamMeta struct {
	FilterReason string
	FilterRule   string
	FilterID     string
	Client       string
	ClientClass  string
}

// Verdict is the final classification record for one domain.
type Verdict struct {
	Domain       string
	Risk         Risk
	Category     string
	Summary      string
	IsAnomaly    bool
	AnomalyScore float64
	Entropy      float64
	Source       VerdictSource
	Confidence   float64
	UpstreamMeta *UpstreamMeta
	DecidedAt    time.Time
	SessionID    string
}

// Signature is a learned upstream-metadata to verdict mapping.
type SignatureKey struct {
	Reason      string
	FilterID    string
	RulePrefix  string
	ClientClass string
}

type Signature struct {
	Key        SignatureKey
	Category   string
	Risk       Risk
	Confidence float64
	Hits       uint64
	LastSeen   time.Time
}

// AnomalySample is the feature vector recorded per analyzed domain.
type AnomalySample struct {
	Domain     string
	Length     float64
	Entropy    float64
	DigitRatio float64
	VowelRatio float64
	TLDWeight  float64
}

// NormalizeFingerprint validates and normalizes a raw domain name into a
// Domain Fingerprint: lowercase, ASCII-compatible encoding, length <= 253.
func NormalizeFingerprint(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ValidationError{Field: "domain", Msg: "empty"}
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", &ValidationError{Field: "domain", Msg: "contains whitespace"}
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", &ValidationError{Field: "domain", Msg: "contains control characters"}
		}
	}
	if !strings.Contains(s, ".") {
		return "", &ValidationError{Field: "domain", Msg: "missing dot"}
	}
	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", &ValidationError{Field: "domain", Msg: "invalid IDN encoding"}
	}
	ascii = strings.ToLower(strings.TrimSuffix(ascii, "."))
	if len(ascii) > 253 {
		return "", &ValidationError{Field: "domain", Msg: "exceeds 253 characters"}
	}
	if _, ok := dns.IsDomainName(dns.Fqdn(ascii)); !ok {
		return "", &ValidationError{Field: "domain", Msg: "not a well-formed DNS name"}
	}
	return ascii, nil
}

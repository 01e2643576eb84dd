package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol is the kind of proxy a candidate is checked as.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolSOCKS4 Protocol = "socks4"
	ProtocolSOCKS5 Protocol = "socks5"
)

// Protocols lists every supported protocol in display order.
var Protocols = []Protocol{ProtocolHTTP, ProtocolSOCKS4, ProtocolSOCKS5}

// ParseProtocol accepts "http", "socks4" or "socks5" in any case.
func ParseProtocol(s string) (Protocol, error) {
	p := Protocol(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProtocolHTTP, ProtocolSOCKS4, ProtocolSOCKS5:
		return p, nil
	}
	return "", fmt.Errorf("unsupported proxy type %q (want http | socks4 | socks5)", s)
}

// Candidate is a parsed, protocol-tagged host:port pair.
// Only the parser builds these, so Host is never empty and Port is in 1..65535.
type Candidate struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// String renders the candidate as host:port.
func (c Candidate) String() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// URL renders the candidate as a proxy URL, e.g. socks5://1.2.3.4:1080.
func (c Candidate) URL() string {
	return string(c.Protocol) + "://" + c.String()
}

// Status is the terminal validation status of a candidate.
type Status string

const (
	StatusWorking Status = "working"
	StatusFailed  Status = "failed"
)

// ErrKind tells failed outcomes apart.
type ErrKind string

const (
	KindInvalidFormat     ErrKind = "invalid_format"
	KindTimeout           ErrKind = "timeout"
	KindConnectionRefused ErrKind = "connection_refused"
	KindProtocol          ErrKind = "protocol_error"
	KindCancelled         ErrKind = "cancelled"
)

// CheckOutcome is the result of checking one input line.
//
// Country is set only for working outcomes; Kind and Error only for failed
// ones. Use Working and Failed to build values.
type CheckOutcome struct {
	Input     string    `json:"input"` // raw line, kept so malformed lines stay accountable
	Candidate Candidate `json:"candidate"`
	Status    Status    `json:"status"`
	Country   string    `json:"country,omitempty"`
	Kind      ErrKind   `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
}

// Working builds a successful outcome.
func Working(input string, c Candidate, country string, latencyMs int64) CheckOutcome {
	return CheckOutcome{
		Input:     input,
		Candidate: c,
		Status:    StatusWorking,
		Country:   country,
		LatencyMs: latencyMs,
	}
}

// Failed builds a failed outcome. c may be the zero Candidate when the line
// could not be parsed.
func Failed(input string, c Candidate, kind ErrKind, msg string) CheckOutcome {
	return CheckOutcome{
		Input:     input,
		Candidate: c,
		Status:    StatusFailed,
		Kind:      kind,
		Error:     msg,
	}
}

// IsWorking reports whether the outcome is a success.
func (o CheckOutcome) IsWorking() bool {
	return o.Status == StatusWorking
}

// Message renders the outcome as a single human readable progress line.
func (o CheckOutcome) Message() string {
	if o.IsWorking() {
		return fmt.Sprintf("%s is working | Country: %s", o.Candidate, o.Country)
	}
	return fmt.Sprintf("%s failed: %s", o.Input, o.Error)
}

// ValidationReport aggregates the outcomes of one validation run.
// Total is fixed at submission time; Completed grows by one per outcome.
type ValidationReport struct {
	Protocol  Protocol       `json:"protocol"`
	Outcomes  []CheckOutcome `json:"outcomes"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
}

// Working returns the working outcomes in report order.
func (r ValidationReport) Working() []CheckOutcome {
	out := make([]CheckOutcome, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.IsWorking() {
			out = append(out, o)
		}
	}
	return out
}

// BatchStats aggregates summary analytics for an entire run.
type BatchStats struct {
	TotalProxies          int             `json:"total_proxies"`
	UniqueProxies         int             `json:"unique_proxies"`
	WorkingProxies        int             `json:"working_proxies"`
	FailedProxies         int             `json:"failed_proxies"`
	FailuresByKind        map[ErrKind]int `json:"failures_by_kind"`
	Countries             int             `json:"countries"`
	AvgLatencyMs          float64         `json:"avg_latency_ms"`
	TotalProcessingTimeMs int64           `json:"total_processing_time_ms"`
	SuccessRatePct        float64         `json:"success_rate_pct"`
}

// Package scanner defines the shared value types of the inspection engine and
// the Chain that runs an ordered list of scanners over one request.
//
// Architecture:
//
//	Scanner (interface)
//	  ├── guardian.Scanner  : weighted prompt-injection heuristics
//	  ├── redact.Scanner    : PII detection and masking
//	  └── mcp.Scanner       : tool permissions and manifest drift
//
//	Chain                   : threads the sanitized text through every scanner,
//	                          escalating the decision and collecting violations.
package scanner

import (
	"encoding/json"
	"strings"
	"time"
)

// Decision is the outcome of a scan. Decisions are ordered allow < warn < block.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

// Severity returns a numeric rank for escalation comparisons.
// Higher number = more restrictive decision.
func (d Decision) Severity() int {
	switch d {
	case DecisionBlock:
		return 3
	case DecisionWarn:
		return 2
	case DecisionAllow:
		return 1
	default:
		return 0
	}
}

// Max returns the more restrictive of d and other.
func (d Decision) Max(other Decision) Decision {
	if other.Severity() > d.Severity() {
		return other
	}
	if d == "" {
		return DecisionAllow
	}
	return d
}

// ParseDecision converts a case-insensitive string into a Decision.
// The legacy spelling "audit" is accepted as an alias for warn.
func ParseDecision(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return DecisionAllow, true
	case "warn", "audit":
		return DecisionWarn, true
	case "block":
		return DecisionBlock, true
	default:
		return "", false
	}
}

// Violation is a single triggered rule. Violations are appended across a chain
// run and never mutated afterwards.
type Violation struct {
	Type      string  `json:"type"`
	Scanner   string  `json:"scanner"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
	Detail    string  `json:"detail,omitempty"`
}

// ScannerResult is what one scanner returns to the chain. Sanitized is nil
// when the scanner did not rewrite the text.
type ScannerResult struct {
	Decision   Decision
	Violations []Violation
	Sanitized  *string
	Duration   time.Duration
}

// Allow returns an empty allow result.
func Allow() ScannerResult {
	return ScannerResult{Decision: DecisionAllow}
}

// Meta carries bookkeeping about how a ScanResult was produced.
type Meta struct {
	Duration    time.Duration `json:"duration"`
	ScannersRun []string      `json:"scanners_run"`
	Cached      bool          `json:"cached"`
	Preset      string        `json:"preset,omitempty"`
}

// ScanResult is the final, immutable outcome of one scan call.
type ScanResult struct {
	Safe       bool        `json:"safe"`
	Decision   Decision    `json:"decision"`
	Sanitized  string      `json:"sanitized"`
	Violations []Violation `json:"violations"`
	Meta       Meta        `json:"meta"`
}

// Clone returns a deep copy so cached results can be handed out safely.
func (r ScanResult) Clone() ScanResult {
	out := r
	out.Violations = append([]Violation(nil), r.Violations...)
	out.Meta.ScannersRun = append([]string(nil), r.Meta.ScannersRun...)
	return out
}

// ToolCall is a tool/function call attached to a request.
type ToolCall struct {
	Name      string          `json:"name"`
	ServerID  string          `json:"server_id,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ScanContext carries optional per-request metadata.
type ScanContext struct {
	AgentID   string
	SessionID string
	UserID    string
	Tools     []ToolCall
	// Manifests holds the full tool listing of each server, keyed by server
	// id, when the caller has it. Without a listing only tools added since
	// the pin can be detected.
	Manifests map[string][]string
	// Preset overrides the engine's default preset for this call.
	Preset string
}

// Scanner is the contract every inspection layer implements.
type Scanner interface {
	// Name returns the scanner identifier (e.g., "injection", "pii", "tools").
	Name() string

	// Scan inspects the current text and returns a decision, violations and
	// optionally a rewritten text.
	Scan(input string, sc ScanContext) ScannerResult
}

// Package audit turns scan outcomes into privacy-preserving records and
// writes them in batches to a pluggable store. Raw input and user ids are
// never stored, only their SHA-256 hashes.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// Request types.
const (
	RequestScan   = "scan"
	RequestBudget = "budget"
	RequestCost   = "cost"
)

// Record is one audited request. Records are immutable once built.
type Record struct {
	ID               string              `json:"id"`
	Timestamp        time.Time           `json:"timestamp"`
	SessionID        string              `json:"session_id,omitempty"`
	AgentID          string              `json:"agent_id,omitempty"`
	UserIDHash       string              `json:"user_id_hash,omitempty"`
	RequestType      string              `json:"request_type"`
	InputHash        string              `json:"input_hash,omitempty"`
	Model            string              `json:"model,omitempty"`
	SecurityDecision scanner.Decision    `json:"security_decision"`
	SecurityReason   string              `json:"security_reason,omitempty"`
	Violations       []scanner.Violation `json:"violations"`
	ScanDurationMs   float64             `json:"scan_duration_ms"`
	CostUSD          *decimal.Decimal    `json:"cost_usd,omitempty"`
}

// Metadata is the call context a Record is built from. Input and UserID
// are hashed and then discarded.
type Metadata struct {
	RequestType string
	SessionID   string
	AgentID     string
	UserID      string
	Input       string
	Model       string
	CostUSD     *decimal.Decimal
}

// NewRecord builds a record from a scan result.
func NewRecord(res scanner.ScanResult, md Metadata) Record {
	reqType := md.RequestType
	if reqType == "" {
		reqType = RequestScan
	}
	rec := Record{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		SessionID:        md.SessionID,
		AgentID:          md.AgentID,
		RequestType:      reqType,
		Model:            md.Model,
		SecurityDecision: res.Decision,
		SecurityReason:   reason(res.Violations),
		Violations:       append([]scanner.Violation{}, res.Violations...),
		ScanDurationMs:   float64(res.Meta.Duration.Microseconds()) / 1000,
		CostUSD:          md.CostUSD,
	}
	if rec.SecurityDecision == "" {
		rec.SecurityDecision = scanner.DecisionAllow
	}
	if md.Input != "" {
		rec.InputHash = Hash(md.Input)
	}
	if md.UserID != "" {
		rec.UserIDHash = Hash(md.UserID)
	}
	return rec
}

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// reason lists the distinct violation types, sorted.
func reason(vs []scanner.Violation) string {
	seen := map[string]bool{}
	var types []string
	for _, v := range vs {
		if !seen[v.Type] {
			seen[v.Type] = true
			types = append(types, v.Type)
		}
	}
	sort.Strings(types)
	return strings.Join(types, ",")
}

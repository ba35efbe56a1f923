package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// Scanner adapts an Evaluator, a PinStore and argument inspection to
// scanner.Scanner. It never rewrites text.
type Scanner struct {
	eval Evaluator
	pins *PinStore
}

// NewScanner returns a tool-policy scanner. pins may be nil.
func NewScanner(eval Evaluator, pins *PinStore) *Scanner {
	if pins == nil {
		pins = NewPinStore()
	}
	return &Scanner{eval: eval, pins: pins}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return "tools" }

// Pins returns the scanner's pin store.
func (s *Scanner) Pins() *PinStore { return s.pins }

// Scan implements scanner.Scanner.
func (s *Scanner) Scan(_ string, sc scanner.ScanContext) scanner.ScannerResult {
	if len(sc.Tools) == 0 {
		return scanner.Allow()
	}

	var (
		decision   = scanner.DecisionAllow
		violations []scanner.Violation
	)
	add := func(d scanner.Decision, v scanner.Violation) {
		decision = decision.Max(d)
		v.Scanner = s.Name()
		violations = append(violations, v)
	}

	if s.eval.MaxChainDepth > 0 && len(sc.Tools) > s.eval.MaxChainDepth {
		add(scanner.DecisionBlock, scanner.Violation{
			Type:    ViolationChainDepth,
			Message: fmt.Sprintf("%d tool calls exceed the limit of %d", len(sc.Tools), s.eval.MaxChainDepth),
		})
	}

	for _, call := range sc.Tools {
		td := s.eval.Evaluate(sc.AgentID, call.Name)
		if td.Decision != scanner.DecisionAllow {
			add(td.Decision, scanner.Violation{
				Type:    td.Violation,
				Message: td.Reason,
				Detail:  call.Name,
			})
		}
		for _, f := range InspectArguments(call) {
			add(f.Decision, scanner.Violation{
				Type:    f.Violation,
				Message: fmt.Sprintf("tool %q argument %q: %s", f.Tool, f.Key, f.Detail),
				Detail:  call.Name,
			})
		}
	}

	for _, server := range referencedServers(sc.Tools) {
		pin, ok := s.pins.Get(server)
		if !ok {
			continue
		}
		check := s.verify(pin, server, sc)
		if check.Valid {
			continue
		}
		add(scanner.DecisionWarn, scanner.Violation{
			Type:    ViolationManifestDrift,
			Message: fmt.Sprintf("server %q tool set changed since it was pinned", server),
			Detail:  driftDetail(check),
		})
	}

	return scanner.ScannerResult{Decision: decision, Violations: violations}
}

// verify compares a server's live listing against its pin. Without a
// listing, only requested tools the pin does not know are reported.
func (s *Scanner) verify(pin ToolManifestPin, server string, sc scanner.ScanContext) ManifestCheck {
	if live, ok := sc.Manifests[server]; ok {
		return VerifyManifest(pin, live)
	}

	var requested []string
	for _, call := range sc.Tools {
		if call.ServerID == server {
			requested = append(requested, call.Name)
		}
	}
	check := VerifyManifest(pin, requested)
	check.Removed = []string{}
	check.Valid = len(check.Added) == 0
	return check
}

func referencedServers(calls []scanner.ToolCall) []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range calls {
		if c.ServerID != "" && !seen[c.ServerID] {
			seen[c.ServerID] = true
			out = append(out, c.ServerID)
		}
	}
	sort.Strings(out)
	return out
}

func driftDetail(c ManifestCheck) string {
	var parts []string
	if len(c.Added) > 0 {
		parts = append(parts, "added="+strings.Join(c.Added, ","))
	}
	if len(c.Removed) > 0 {
		parts = append(parts, "removed="+strings.Join(c.Removed, ","))
	}
	return strings.Join(parts, " ")
}

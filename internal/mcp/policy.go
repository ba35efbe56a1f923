package mcp

import (
	"fmt"
	"strings"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// Evaluator decides whether callers may use tools. The zero value allows
// everything.
type Evaluator struct {
	// DangerousPatterns block matching tools for every caller.
	DangerousPatterns []string

	// Policies are keyed by caller (agent) id.
	Policies map[string]ToolPolicy

	// DefaultDeny blocks callers that have no Policies entry.
	DefaultDeny bool

	// MaxChainDepth blocks requests carrying more tool calls than this.
	// Zero disables the check.
	MaxChainDepth int
}

// Evaluate applies the evaluation order to one tool for one caller.
func (e *Evaluator) Evaluate(caller, tool string) ToolDecision {
	for _, p := range e.DangerousPatterns {
		if matchToolName(tool, p) {
			return ToolDecision{
				Tool:      tool,
				Decision:  scanner.DecisionBlock,
				Violation: ViolationDangerousTool,
				Pattern:   p,
				Reason:    fmt.Sprintf("tool %q matches dangerous pattern %q", tool, p),
			}
		}
	}

	pol, ok := e.Policies[caller]
	if !ok {
		if e.DefaultDeny {
			return ToolDecision{
				Tool:      tool,
				Decision:  scanner.DecisionBlock,
				Violation: ViolationUnconfiguredCall,
				Reason:    fmt.Sprintf("caller %q has no tool policy", caller),
			}
		}
		return ToolDecision{Tool: tool, Decision: scanner.DecisionAllow}
	}

	for _, p := range pol.Denied {
		if matchToolName(tool, p) {
			return ToolDecision{
				Tool:      tool,
				Decision:  scanner.DecisionBlock,
				Violation: ViolationToolDenied,
				Pattern:   p,
				Reason:    fmt.Sprintf("tool %q is denied for %q", tool, caller),
			}
		}
	}

	if len(pol.Allowed) > 0 {
		for _, p := range pol.Allowed {
			if matchToolName(tool, p) {
				return ToolDecision{Tool: tool, Decision: scanner.DecisionAllow, Pattern: p}
			}
		}
		return ToolDecision{
			Tool:      tool,
			Decision:  scanner.DecisionBlock,
			Violation: ViolationToolNotAllowed,
			Reason:    fmt.Sprintf("tool %q is not in the allow-list for %q", tool, caller),
		}
	}

	return ToolDecision{Tool: tool, Decision: scanner.DecisionAllow}
}

// matchToolName checks if a tool name matches a pattern.
// Supports exact match, a trailing '*' prefix match, and a bare '*'.
func matchToolName(name, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return name == pattern
}

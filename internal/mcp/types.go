// Package mcp enforces which tools a caller may invoke and detects when a
// tool-providing server changes the set of tools it exposes.
//
// Evaluation order per requested tool:
//
//	1. global dangerous patterns   → block (cannot be overridden)
//	2. caller denied patterns      → block
//	3. caller allow-list, no match → block
//	4. caller without a policy     → allow (block when DefaultDeny is set)
//
// Patterns are exact names or a prefix followed by a trailing '*', matched
// case-sensitively.
package mcp

import "github.com/madetocreate/ai-shield/internal/scanner"

// ToolPolicy restricts the tools one caller may use.
type ToolPolicy struct {
	Allowed []string `yaml:"allowed,omitempty" json:"allowed,omitempty"`
	Denied  []string `yaml:"denied,omitempty" json:"denied,omitempty"`
}

// Violation types reported by this package.
const (
	ViolationDangerousTool     = "dangerous_tool"
	ViolationToolDenied        = "tool_denied"
	ViolationToolNotAllowed    = "tool_not_allowed"
	ViolationUnconfiguredCall  = "unconfigured_caller"
	ViolationChainDepth        = "tool_chain_depth"
	ViolationManifestDrift     = "manifest_drift"
	ViolationDangerousArgument = "dangerous_tool_argument"
	ViolationSecretArgument    = "secret_in_tool_argument"
)

// ToolDecision is the outcome of evaluating one tool name.
type ToolDecision struct {
	Tool      string
	Decision  scanner.Decision
	Violation string // empty when allowed
	Pattern   string // the pattern that decided, if any
	Reason    string
}

// ToolManifestPin records the tool set a server exposed when an operator
// trusted it.
type ToolManifestPin struct {
	ServerID   string   `yaml:"server_id" json:"server_id"`
	ToolsHash  string   `yaml:"tools_hash" json:"tools_hash"`
	ToolCount  int      `yaml:"tool_count" json:"tool_count"`
	KnownTools []string `yaml:"known_tools" json:"known_tools"`
}

// ManifestCheck is the result of comparing a live tool set to a pin.
type ManifestCheck struct {
	Valid   bool     `json:"valid"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

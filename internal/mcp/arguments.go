package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"mvdan.cc/sh/v3/syntax"

	"github.com/madetocreate/ai-shield/internal/normalize"
	"github.com/madetocreate/ai-shield/internal/redact"
	"github.com/madetocreate/ai-shield/internal/scanner"
)

// ArgumentFinding is one problem found in a tool call's arguments.
type ArgumentFinding struct {
	Tool      string
	Key       string
	Violation string
	Decision  scanner.Decision
	Detail    string
}

// commandKeys are argument names whose string values are parsed as shell.
var commandKeys = map[string]bool{
	"command": true,
	"cmd":     true,
	"script":  true,
	"shell":   true,
}

var shellInterpreters = map[string]bool{
	"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true,
}

// InspectArguments looks for destructive shell commands and credentials in
// a tool call's JSON arguments. Malformed JSON is repaired first; arguments
// that still cannot be parsed are skipped.
func InspectArguments(call scanner.ToolCall) []ArgumentFinding {
	args, ok := decodeArguments(call.Arguments)
	if !ok {
		return nil
	}

	var findings []ArgumentFinding
	walkArguments("", args, func(key, value string) {
		if commandKeys[strings.ToLower(key)] {
			for _, reason := range dangerousCommands(value) {
				findings = append(findings, ArgumentFinding{
					Tool:      call.Name,
					Key:       key,
					Violation: ViolationDangerousArgument,
					Decision:  scanner.DecisionBlock,
					Detail:    reason,
				})
			}
		}
		for _, kind := range redact.SecretKinds(value) {
			findings = append(findings, ArgumentFinding{
				Tool:      call.Name,
				Key:       key,
				Violation: ViolationSecretArgument,
				Decision:  scanner.DecisionWarn,
				Detail:    kind,
			})
		}
	})
	return findings
}

func decodeArguments(raw json.RawMessage) (any, bool) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	repaired, err := jsonrepair.JSONRepair(string(raw))
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}

// walkArguments calls fn for every string leaf with the nearest object key.
// Object keys are visited in sorted order so findings are stable.
func walkArguments(key string, v any, fn func(key, value string)) {
	switch val := v.(type) {
	case string:
		fn(key, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkArguments(k, val[k], fn)
		}
	case []any:
		for _, item := range val {
			walkArguments(key, item, fn)
		}
	}
}

// dangerousCommands parses a shell snippet and returns a reason for every
// destructive construct in it.
func dangerousCommands(command string) []string {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return fallbackCommands(command)
	}

	var reasons []string
	for _, stmt := range file.Stmts {
		reasons = append(reasons, walkStmt(stmt)...)
	}
	return reasons
}

func walkStmt(stmt *syntax.Stmt) []string {
	if stmt == nil || stmt.Cmd == nil {
		return nil
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		words := make([]string, 0, len(cmd.Args))
		for _, w := range cmd.Args {
			words = append(words, wordToString(w))
		}
		return checkArgv(words)

	case *syntax.BinaryCmd:
		reasons := append(walkStmt(cmd.X), walkStmt(cmd.Y)...)
		if cmd.Op == syntax.Pipe || cmd.Op == syntax.PipeAll {
			if fetches(lastCall(cmd.X)) && shellInterpreters[firstCall(cmd.Y).Executable] {
				reasons = append(reasons, "remote content piped to a shell")
			}
		}
		return reasons

	case *syntax.Subshell:
		var reasons []string
		for _, s := range cmd.Stmts {
			reasons = append(reasons, walkStmt(s)...)
		}
		return reasons

	case *syntax.Block:
		var reasons []string
		for _, s := range cmd.Stmts {
			reasons = append(reasons, walkStmt(s)...)
		}
		return reasons
	}
	return nil
}

// firstCall and lastCall find the commands at either end of a pipeline.
func firstCall(stmt *syntax.Stmt) normalize.Command {
	if stmt == nil {
		return normalize.Command{}
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return callCommand(cmd)
	case *syntax.BinaryCmd:
		return firstCall(cmd.X)
	}
	return normalize.Command{}
}

func lastCall(stmt *syntax.Stmt) normalize.Command {
	if stmt == nil {
		return normalize.Command{}
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		return callCommand(cmd)
	case *syntax.BinaryCmd:
		return lastCall(cmd.Y)
	}
	return normalize.Command{}
}

func callCommand(call *syntax.CallExpr) normalize.Command {
	words := make([]string, 0, len(call.Args))
	for _, w := range call.Args {
		words = append(words, wordToString(w))
	}
	return normalize.ParseArgv(stripSudo(words))
}

func fetches(c normalize.Command) bool {
	return c.Executable == "curl" || c.Executable == "wget"
}

// stripSudo treats sudo and its flags as transparent.
func stripSudo(words []string) []string {
	if len(words) == 0 || words[0] != "sudo" {
		return words
	}
	rest := words[1:]
	for len(rest) > 0 && strings.HasPrefix(rest[0], "-") {
		rest = rest[1:]
	}
	return rest
}

func checkArgv(words []string) []string {
	c := normalize.ParseArgv(stripSudo(words))
	switch {
	case c.Executable == "":
		return nil
	case c.Executable == "rm" && (c.HasFlag("rf") || c.HasFlag("Rf") ||
		(c.HasFlag("", "--recursive") && c.HasFlag("f", "--force"))):
		return []string{fmt.Sprintf("recursive forced delete: %s", c.Raw)}
	case c.Executable == "mkfs" || strings.HasPrefix(c.Executable, "mkfs."):
		return []string{fmt.Sprintf("filesystem format: %s", c.Raw)}
	case c.Executable == "dd":
		for _, a := range c.Args[1:] {
			if strings.HasPrefix(a, "of=/dev/") {
				return []string{fmt.Sprintf("raw device write: %s", c.Raw)}
			}
		}
	}
	return nil
}

// fallbackCommands handles snippets the shell parser rejects by splitting
// on pipes and whitespace.
func fallbackCommands(command string) []string {
	var (
		reasons  []string
		previous normalize.Command
	)
	for i, part := range strings.Split(command, "|") {
		words := strings.Fields(part)
		reasons = append(reasons, checkArgv(words)...)
		current := normalize.ParseArgv(stripSudo(words))
		if i > 0 && fetches(previous) && shellInterpreters[current.Executable] {
			reasons = append(reasons, "remote content piped to a shell")
		}
		previous = current
	}
	return reasons
}

func wordToString(word *syntax.Word) string {
	if lit := word.Lit(); lit != "" {
		return lit
	}
	var sb strings.Builder
	printer := syntax.NewPrinter()
	if err := printer.Print(&sb, word); err != nil {
		return ""
	}
	return strings.Trim(sb.String(), `'"`)
}

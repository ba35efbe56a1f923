package redact

import (
	"regexp"
	"strings"
)

// Secret is a credential-shaped span.
type Secret struct {
	Kind  string
	Start int
	End   int
}

type secretPattern struct {
	kind string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws_credential", regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`)},
	{"github_token", regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`)},
	{"api_key", regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`)},
	{"stripe_key", regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`)},
	{"openai_key", regexp.MustCompile(`\bsk-(proj-)?[A-Za-z0-9_-]{20,}`)},
	{"password", regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`)},
}

const redactedPlaceholder = "[REDACTED]"

// FindSecrets returns credential-shaped spans in s. Spans from different
// patterns may overlap.
func FindSecrets(s string) []Secret {
	var found []Secret
	for _, p := range secretPatterns {
		for _, loc := range p.re.FindAllStringIndex(s, -1) {
			found = append(found, Secret{Kind: p.kind, Start: loc[0], End: loc[1]})
		}
	}
	return found
}

// SecretKinds returns the distinct kinds found in s, in pattern order.
func SecretKinds(s string) []string {
	var kinds []string
	seen := map[string]bool{}
	for _, sec := range FindSecrets(s) {
		if !seen[sec.Kind] {
			seen[sec.Kind] = true
			kinds = append(kinds, sec.Kind)
		}
	}
	return kinds
}

// RedactSecrets replaces every credential-shaped span with [REDACTED].
func RedactSecrets(input string) string {
	result := input
	for _, p := range secretPatterns {
		result = p.re.ReplaceAllString(result, redactedPlaceholder)
	}
	return result
}

// RedactAll removes both credentials and PII from free text using the
// default detectors. It is meant for strings headed to logs.
func RedactAll(input string) string {
	out := RedactSecrets(input)
	entities := detect(out, defaultDetectors())
	if len(entities) == 0 {
		return out
	}
	var b strings.Builder
	last := 0
	for _, e := range entities {
		b.WriteString(out[last:e.Start])
		b.WriteString("[REDACTED-" + strings.ToUpper(string(e.Type)) + "]")
		last = e.End
	}
	b.WriteString(out[last:])
	return b.String()
}

// Package taxonomy describes every violation type the engine can report:
// what it means, how risky it is, what to do about it, and which items of
// industry standards such as the OWASP LLM Top 10 it maps to.
package taxonomy

// Entry documents one violation type. Type may end in "*" to cover a family
// of types, e.g. "pii_*".
type Entry struct {
	Type           string              `yaml:"type" json:"type"`
	Name           string              `yaml:"name" json:"name"`
	Scanner        string              `yaml:"scanner" json:"scanner"`
	Category       string              `yaml:"category" json:"category"`
	RiskLevel      string              `yaml:"risk_level" json:"risk_level"` // "critical", "high", "medium", "low"
	Abstract       string              `yaml:"abstract" json:"abstract"`
	Recommendation string              `yaml:"recommendation" json:"recommendation"`
	Compliance     map[string][]string `yaml:"compliance" json:"compliance,omitempty"` // standard id → item ids
	CWE            []string            `yaml:"cwe" json:"cwe,omitempty"`
}

// CategoryDef groups related entries.
type CategoryDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

type catalogFile struct {
	Categories []CategoryDef `yaml:"categories"`
	Entries    []Entry       `yaml:"entries"`
}

var riskLevels = map[string]bool{"critical": true, "high": true, "medium": true, "low": true}

// Package guardian scores free text for prompt-injection risk.
//
// Architecture:
//
//	Rule catalog (DefaultRules + caller ExtraRules)
//	  └── compiled once per Scanner, never shared or mutated
//
//	Scanner.Score  : weighted rule matches + capped structural bonuses
//	Scanner.Scan   : adapts Score to scanner.Scanner so it plugs into a Chain.
//	                 The scanner only flags; it never rewrites the text.
package guardian

import (
	"errors"
	"fmt"
	"strings"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// ErrInvalidRule is returned when a caller-supplied rule cannot be used.
var ErrInvalidRule = errors.New("guardian: invalid rule")

// Category groups related rules.
type Category string

const (
	CategoryInstructionOverride    Category = "instruction_override"
	CategoryRoleManipulation       Category = "role_manipulation"
	CategorySystemPromptExtraction Category = "system_prompt_extraction"
	CategoryEncodingEvasion        Category = "encoding_evasion"
	CategoryDelimiterInjection     Category = "delimiter_injection"
	CategoryContextManipulation    Category = "context_manipulation"
	CategoryOutputManipulation     Category = "output_manipulation"
	CategoryToolAbuse              Category = "tool_abuse"
)

// Categories lists the built-in categories in catalog order.
func Categories() []Category {
	return []Category{
		CategoryInstructionOverride,
		CategoryRoleManipulation,
		CategorySystemPromptExtraction,
		CategoryEncodingEvasion,
		CategoryDelimiterInjection,
		CategoryContextManipulation,
		CategoryOutputManipulation,
		CategoryToolAbuse,
	}
}

// Rule is a single weighted detection pattern.
type Rule struct {
	// ID is a short, unique identifier (e.g., "io_ignore_previous").
	ID string `yaml:"id"`

	Category Category `yaml:"category"`

	// Pattern is an RE2 regular expression.
	Pattern string `yaml:"pattern"`

	// Weight is added to the score when the rule matches; 0.0–1.0.
	Weight float64 `yaml:"weight"`

	Description string `yaml:"description"`
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if r.Category == "" {
		return fmt.Errorf("%w: rule %s has no category", ErrInvalidRule, r.ID)
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("%w: rule %s weight %.2f outside [0,1]", ErrInvalidRule, r.ID, r.Weight)
	}
	if r.Pattern == "" {
		return fmt.Errorf("%w: rule %s has no pattern", ErrInvalidRule, r.ID)
	}
	return nil
}

// Strictness selects a named threshold.
type Strictness string

const (
	StrictnessLow    Strictness = "low"
	StrictnessMedium Strictness = "medium"
	StrictnessHigh   Strictness = "high"
)

// Threshold returns the block threshold for the level. Unknown levels fall
// back to medium.
func (s Strictness) Threshold() float64 {
	switch s {
	case StrictnessLow:
		return 0.50
	case StrictnessHigh:
		return 0.15
	default:
		return 0.30
	}
}

// ParseStrictness validates a strictness name.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToLower(strings.TrimSpace(s))) {
	case StrictnessLow:
		return StrictnessLow, nil
	case StrictnessMedium, "":
		return StrictnessMedium, nil
	case StrictnessHigh:
		return StrictnessHigh, nil
	}
	return "", fmt.Errorf("guardian: unknown strictness %q", s)
}

// Config configures a Scanner. The zero value is medium strictness with the
// built-in catalog.
type Config struct {
	Strictness Strictness

	// Threshold overrides Strictness when > 0. Must be ≤ 1.
	Threshold float64

	// ExtraRules are merged into the built-in catalog at construction.
	ExtraRules []Rule
}

// Match is one rule that fired.
type Match struct {
	RuleID      string
	Category    Category
	Weight      float64
	Description string
}

// Bonus is a structural signal added on top of rule weights.
type Bonus struct {
	Signal string
	Count  int
	Value  float64
}

// Assessment is the full scoring breakdown for one input.
type Assessment struct {
	Score     float64
	Threshold float64
	Decision  scanner.Decision
	Matches   []Match
	Bonuses   []Bonus
}

package guardian

import (
	"fmt"
	"math"
	"regexp"

	"github.com/madetocreate/ai-shield/internal/normalize"
	"github.com/madetocreate/ai-shield/internal/scanner"
	"github.com/madetocreate/ai-shield/internal/unicode"
)

// Scanner detects prompt injection using weighted pattern matching.
// It is safe for concurrent use.
type Scanner struct {
	rules     []compiledRule
	threshold float64
}

// compiledRule pairs a catalog entry with its compiled pattern.
type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Structural bonus increments and caps.
const (
	blankRunBonus   = 0.05
	blankRunCap     = 0.10
	roleMarkerBonus = 0.05
	roleMarkerCap   = 0.15
	headerBonus     = 0.05
	headerCap       = 0.10
	hiddenBonus     = 0.10
)

var (
	blankRunPattern   = regexp.MustCompile(`\n([ \t]*\n){2,}`)
	roleMarkerPattern = regexp.MustCompile(`(?im)(^\s*(system|assistant|user)\s*:|<\|im_start\|>)`)
	headerPattern     = regexp.MustCompile(`(?im)^#{1,6}\s*(instructions?|system|rules|new\s+task|override)\b`)
)

// NewScanner compiles the built-in catalog plus cfg.ExtraRules.
func NewScanner(cfg Config) (*Scanner, error) {
	threshold := cfg.Strictness.Threshold()
	if cfg.Threshold != 0 {
		if cfg.Threshold < 0 || cfg.Threshold > 1 {
			return nil, fmt.Errorf("guardian: threshold %.2f outside (0,1]", cfg.Threshold)
		}
		threshold = cfg.Threshold
	}

	catalog := append(DefaultRules(), cfg.ExtraRules...)
	seen := make(map[string]bool, len(catalog))
	rules := make([]compiledRule, 0, len(catalog))
	for _, r := range catalog {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidRule, r.ID)
		}
		seen[r.ID] = true

		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidRule, r.ID, err)
		}
		rules = append(rules, compiledRule{Rule: r, re: re})
	}

	return &Scanner{rules: rules, threshold: threshold}, nil
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return "injection" }

// Threshold returns the effective block threshold.
func (s *Scanner) Threshold() float64 { return s.threshold }

// Rules returns the number of compiled rules.
func (s *Scanner) Rules() int { return len(s.rules) }

// Score runs every rule against the input and returns the breakdown.
// Rules are evaluated on the raw text, its folded form, and any payload
// smuggled in tag characters; each rule counts at most once.
func (s *Scanner) Score(input string) Assessment {
	report := unicode.Inspect(input)
	variants := []string{input, normalize.Fold(input)}
	if report.TagPayload != "" {
		variants = append(variants, report.TagPayload)
	}

	var (
		matches []Match
		total   float64
	)
	for _, r := range s.rules {
		for _, v := range variants {
			if r.re.MatchString(v) {
				matches = append(matches, Match{
					RuleID:      r.ID,
					Category:    r.Category,
					Weight:      r.Weight,
					Description: r.Description,
				})
				total += r.Weight
				break
			}
		}
	}

	bonuses := structuralBonuses(input, report)
	for _, b := range bonuses {
		total += b.Value
	}

	score := clamp(total)
	return Assessment{
		Score:     score,
		Threshold: s.threshold,
		Decision:  decide(score, s.threshold),
		Matches:   matches,
		Bonuses:   bonuses,
	}
}

// Scan implements scanner.Scanner. Violations are reported only when the
// decision is warn or block.
func (s *Scanner) Scan(input string, _ scanner.ScanContext) scanner.ScannerResult {
	a := s.Score(input)
	if a.Decision == scanner.DecisionAllow {
		return scanner.Allow()
	}

	violations := make([]scanner.Violation, 0, len(a.Matches)+1)
	for _, m := range a.Matches {
		violations = append(violations, scanner.Violation{
			Type:      "prompt_injection",
			Scanner:   s.Name(),
			Score:     m.Weight,
			Threshold: a.Threshold,
			Message:   m.Description,
			Detail:    fmt.Sprintf("%s (%s)", m.RuleID, m.Category),
		})
	}
	violations = append(violations, scanner.Violation{
		Type:      "injection_score",
		Scanner:   s.Name(),
		Score:     a.Score,
		Threshold: a.Threshold,
		Message:   fmt.Sprintf("injection score %.2f with %d matching rules", a.Score, len(a.Matches)),
	})

	return scanner.ScannerResult{Decision: a.Decision, Violations: violations}
}

func structuralBonuses(input string, report unicode.Report) []Bonus {
	var bonuses []Bonus

	add := func(signal string, count int, step, limit float64) {
		if count == 0 {
			return
		}
		bonuses = append(bonuses, Bonus{
			Signal: signal,
			Count:  count,
			Value:  math.Min(float64(count)*step, limit),
		})
	}

	add("blank_line_runs", len(blankRunPattern.FindAllStringIndex(input, -1)), blankRunBonus, blankRunCap)
	add("role_markers", len(roleMarkerPattern.FindAllStringIndex(input, -1)), roleMarkerBonus, roleMarkerCap)
	add("instruction_headers", len(headerPattern.FindAllStringIndex(input, -1)), headerBonus, headerCap)
	if report.Hidden > 0 {
		bonuses = append(bonuses, Bonus{Signal: "hidden_unicode", Count: report.Hidden, Value: hiddenBonus})
	}

	return bonuses
}

func decide(score, threshold float64) scanner.Decision {
	switch {
	case score >= threshold:
		return scanner.DecisionBlock
	case score >= threshold/2:
		return scanner.DecisionWarn
	default:
		return scanner.DecisionAllow
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

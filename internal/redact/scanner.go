package redact

import (
	"fmt"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// Config configures a Scanner. The zero value masks every entity type.
type Config struct {
	// Action applies to types without a PerType entry. Defaults to mask.
	Action Action

	PerType map[EntityType]Action

	// Exclude removes types from detection entirely.
	Exclude []EntityType
}

// Scanner detects PII and applies the configured action per entity type.
// It is safe for concurrent use.
type Scanner struct {
	detectors []detector
	action    Action
	perType   map[EntityType]Action
}

// NewScanner validates cfg and builds a scanner.
func NewScanner(cfg Config) (*Scanner, error) {
	action := cfg.Action
	if action == "" {
		action = ActionMask
	}
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}

	perType := make(map[EntityType]Action, len(cfg.PerType))
	for t, a := range cfg.PerType {
		if _, err := ParseEntityType(string(t)); err != nil {
			return nil, err
		}
		if _, err := ParseAction(string(a)); err != nil {
			return nil, fmt.Errorf("redact: %s: %w", t, err)
		}
		perType[t] = a
	}

	excluded := make(map[EntityType]bool, len(cfg.Exclude))
	for _, t := range cfg.Exclude {
		if _, err := ParseEntityType(string(t)); err != nil {
			return nil, err
		}
		excluded[t] = true
	}

	var detectors []detector
	for _, d := range defaultDetectors() {
		if !excluded[d.typ] {
			detectors = append(detectors, d)
		}
	}

	return &Scanner{detectors: detectors, action: action, perType: perType}, nil
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return "pii" }

// ActionFor returns the action configured for t.
func (s *Scanner) ActionFor(t EntityType) Action {
	if a, ok := s.perType[t]; ok {
		return a
	}
	return s.action
}

// Detect returns the non-overlapping entities found in text, ordered by
// start offset.
func (s *Scanner) Detect(text string) []Entity {
	return detect(text, s.detectors)
}

// Scan implements scanner.Scanner. Masked and blocked spans are both
// rewritten in the sanitized text so a blocked result never echoes the
// value back; allowed spans are reported but left intact.
func (s *Scanner) Scan(input string, _ scanner.ScanContext) scanner.ScannerResult {
	entities := s.Detect(input)
	if len(entities) == 0 {
		return scanner.Allow()
	}

	decision := scanner.DecisionAllow
	violations := make([]scanner.Violation, 0, len(entities))
	var toMask []Entity

	for _, e := range entities {
		action := s.ActionFor(e.Type)
		switch action {
		case ActionBlock:
			decision = decision.Max(scanner.DecisionBlock)
			toMask = append(toMask, e)
		case ActionMask:
			decision = decision.Max(scanner.DecisionWarn)
			toMask = append(toMask, e)
		}

		violations = append(violations, scanner.Violation{
			Type:    "pii_" + string(e.Type),
			Scanner: s.Name(),
			Score:   e.Confidence,
			Message: fmt.Sprintf("%s detected (%s)", e.Type, action),
			Detail:  fmt.Sprintf("offset %d-%d", e.Start, e.End),
		})
	}

	res := scanner.ScannerResult{Decision: decision, Violations: violations}
	if len(toMask) > 0 {
		masked := Mask(input, toMask)
		res.Sanitized = &masked
	}
	return res
}

// Package policy resolves named deployment presets into the thresholds and
// actions the scanners are built from.
//
// The catalog is embedded at build time. Additional presets can be loaded
// from a packs directory; a pack may add a name but never redefine one.
package policy

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/madetocreate/ai-shield/internal/redact"
)

// DefaultPreset is resolved when no name is given.
const DefaultPreset = "internal_support"

var (
	// ErrUnknownPreset is returned by Resolve for a name not in the catalog.
	ErrUnknownPreset = errors.New("policy: unknown preset")

	// ErrInvalidPreset is returned when a preset file fails validation.
	ErrInvalidPreset = errors.New("policy: invalid preset")
)

// Preset is a named, immutable bundle of scanner settings.
type Preset struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Injection   InjectionPolicy `yaml:"injection"`
	PII         PIIPolicy       `yaml:"pii"`
	Tools       ToolsPolicy     `yaml:"tools"`
	Cost        CostPolicy      `yaml:"cost"`
}

type InjectionPolicy struct {
	Threshold float64 `yaml:"threshold"`
}

type PIIPolicy struct {
	DefaultAction redact.Action                       `yaml:"default_action"`
	PerType       map[redact.EntityType]redact.Action `yaml:"per_type,omitempty"`
}

type ToolsPolicy struct {
	DangerousPatterns []string `yaml:"dangerous_patterns"`
	MaxChainDepth     int      `yaml:"max_chain_depth"`
}

// CostPolicy budgets are in USD. Zero disables a budget.
type CostPolicy struct {
	DailyBudget    float64 `yaml:"daily_budget"`
	MonthlyBudget  float64 `yaml:"monthly_budget"`
	SoftLimitRatio float64 `yaml:"soft_limit_ratio"`
}

const defaultSoftLimitRatio = 0.8

func (p *Preset) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPreset)
	}
	if t := p.Injection.Threshold; t <= 0 || t > 1 {
		return fmt.Errorf("%w: %s: injection threshold %.2f outside (0,1]", ErrInvalidPreset, p.Name, t)
	}

	if p.PII.DefaultAction == "" {
		p.PII.DefaultAction = redact.ActionMask
	}
	if _, err := redact.ParseAction(string(p.PII.DefaultAction)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPreset, p.Name, err)
	}
	for t, a := range p.PII.PerType {
		if _, err := redact.ParseEntityType(string(t)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPreset, p.Name, err)
		}
		if _, err := redact.ParseAction(string(a)); err != nil {
			return fmt.Errorf("%w: %s: %s: %v", ErrInvalidPreset, p.Name, t, err)
		}
	}

	if p.Tools.MaxChainDepth < 0 {
		return fmt.Errorf("%w: %s: negative max_chain_depth", ErrInvalidPreset, p.Name)
	}
	if p.Cost.DailyBudget < 0 || p.Cost.MonthlyBudget < 0 {
		return fmt.Errorf("%w: %s: negative budget", ErrInvalidPreset, p.Name)
	}
	if p.Cost.SoftLimitRatio == 0 {
		p.Cost.SoftLimitRatio = defaultSoftLimitRatio
	}
	if r := p.Cost.SoftLimitRatio; r < 0 || r > 1 {
		return fmt.Errorf("%w: %s: soft_limit_ratio %.2f outside [0,1]", ErrInvalidPreset, p.Name, r)
	}
	return nil
}

func (p *Preset) clone() *Preset {
	c := *p
	c.PII.PerType = maps.Clone(p.PII.PerType)
	c.Tools.DangerousPatterns = slices.Clone(p.Tools.DangerousPatterns)
	return &c
}

// InjectionThreshold is the heuristic block threshold.
func (p *Preset) InjectionThreshold() float64 { return p.Injection.Threshold }

// PIIAction returns the action for t, falling back to the default action.
func (p *Preset) PIIAction(t redact.EntityType) redact.Action {
	if a, ok := p.PII.PerType[t]; ok {
		return a
	}
	return p.PII.DefaultAction
}

// PIIConfig returns a redact scanner configuration for the preset.
func (p *Preset) PIIConfig() redact.Config {
	return redact.Config{Action: p.PII.DefaultAction, PerType: maps.Clone(p.PII.PerType)}
}

// DangerousToolPatterns returns a copy of the global tool deny patterns.
func (p *Preset) DangerousToolPatterns() []string {
	return slices.Clone(p.Tools.DangerousPatterns)
}

// MaxToolChainDepth is the most tool calls one request may carry; 0 means
// unlimited.
func (p *Preset) MaxToolChainDepth() int { return p.Tools.MaxChainDepth }

func (p *Preset) DailyBudget() decimal.Decimal   { return decimal.NewFromFloat(p.Cost.DailyBudget) }
func (p *Preset) MonthlyBudget() decimal.Decimal { return decimal.NewFromFloat(p.Cost.MonthlyBudget) }
func (p *Preset) SoftLimitRatio() float64        { return p.Cost.SoftLimitRatio }

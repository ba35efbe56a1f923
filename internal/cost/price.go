package cost

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var perMillion = decimal.NewFromInt(1_000_000)

// Price is USD per one million tokens.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

func usd(input, output float64) Price {
	return Price{Input: decimal.NewFromFloat(input), Output: decimal.NewFromFloat(output)}
}

// Cost prices a request.
func (p Price) Cost(inputTokens, outputTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(inputTokens)).Mul(p.Input)
	out := decimal.NewFromInt(int64(outputTokens)).Mul(p.Output)
	return in.Add(out).Div(perMillion)
}

// PriceTable maps model names to prices. Lookup tries, in order, an exact
// name, an alias, the longest known prefix, and finally the fallback price,
// so every model can be priced. A PriceTable is never mutated after
// construction.
type PriceTable struct {
	exact    map[string]Price
	aliases  map[string]string
	prefixes []string // exact keys, longest first
	fallback Price
}

// NewPriceTable builds a table. Names are matched case-insensitively.
func NewPriceTable(prices map[string]Price, aliases map[string]string, fallback Price) *PriceTable {
	t := &PriceTable{
		exact:    make(map[string]Price, len(prices)),
		aliases:  make(map[string]string, len(aliases)),
		fallback: fallback,
	}
	for name, p := range prices {
		t.exact[strings.ToLower(name)] = p
	}
	for alias, target := range aliases {
		t.aliases[strings.ToLower(alias)] = strings.ToLower(target)
	}
	for name := range t.exact {
		t.prefixes = append(t.prefixes, name)
	}
	sort.Slice(t.prefixes, func(i, j int) bool {
		if len(t.prefixes[i]) != len(t.prefixes[j]) {
			return len(t.prefixes[i]) > len(t.prefixes[j])
		}
		return t.prefixes[i] < t.prefixes[j]
	})
	return t
}

// Lookup returns the price for model and the table entry that matched,
// or "fallback".
func (t *PriceTable) Lookup(model string) (Price, string) {
	name := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:] // provider prefix, e.g. "openai/gpt-4o"
	}

	if p, ok := t.exact[name]; ok {
		return p, name
	}
	if target, ok := t.aliases[name]; ok {
		if p, ok := t.exact[target]; ok {
			return p, target
		}
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(name, prefix) {
			return t.exact[prefix], prefix
		}
	}
	return t.fallback, "fallback"
}

// Estimate prices a request for model.
func (t *PriceTable) Estimate(model string, inputTokens, outputTokens int) decimal.Decimal {
	p, _ := t.Lookup(model)
	return p.Cost(inputTokens, outputTokens)
}

// DefaultPriceTable covers the common OpenAI, Anthropic, Google and Mistral
// models. Unknown models are priced like a large frontier model.
func DefaultPriceTable() *PriceTable {
	return NewPriceTable(map[string]Price{
		// OpenAI
		"gpt-4o":        usd(2.50, 10.00),
		"gpt-4o-mini":   usd(0.15, 0.60),
		"gpt-4-turbo":   usd(10.00, 30.00),
		"gpt-4":         usd(30.00, 60.00),
		"gpt-3.5-turbo": usd(0.50, 1.50),
		"o1":            usd(15.00, 60.00),
		"o1-mini":       usd(3.00, 12.00),
		"o3-mini":       usd(1.10, 4.40),

		// Anthropic
		"claude-opus-4":     usd(15.00, 75.00),
		"claude-sonnet-4":   usd(3.00, 15.00),
		"claude-3-5-sonnet": usd(3.00, 15.00),
		"claude-3-5-haiku":  usd(0.80, 4.00),
		"claude-3-opus":     usd(15.00, 75.00),
		"claude-3-haiku":    usd(0.25, 1.25),

		// Google
		"gemini-1.5-pro":   usd(1.25, 5.00),
		"gemini-1.5-flash": usd(0.075, 0.30),
		"gemini-2.0-flash": usd(0.10, 0.40),

		// Mistral
		"mistral-large":     usd(2.00, 6.00),
		"mistral-small":     usd(0.20, 0.60),
		"open-mistral-nemo": usd(0.15, 0.15),
	}, map[string]string{
		"gpt4o":             "gpt-4o",
		"gpt4":              "gpt-4",
		"claude-3.5-sonnet": "claude-3-5-sonnet",
		"claude-3.5-haiku":  "claude-3-5-haiku",
		"sonnet":            "claude-sonnet-4",
		"opus":              "claude-opus-4",
		"haiku":             "claude-3-5-haiku",
		"gemini-pro":        "gemini-1.5-pro",
		"gemini-flash":      "gemini-2.0-flash",
		"mistral-nemo":      "open-mistral-nemo",
	}, usd(10.00, 30.00))
}

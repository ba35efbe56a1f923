package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubScanner returns a fixed decision and optionally rewrites the text.
type stubScanner struct {
	name      string
	decision  Decision
	rewrite   func(string) string
	seen      []string
	violation bool
}

func (s *stubScanner) Name() string { return s.name }

func (s *stubScanner) Scan(input string, _ ScanContext) ScannerResult {
	s.seen = append(s.seen, input)
	res := ScannerResult{Decision: s.decision}
	if s.violation {
		res.Violations = []Violation{{Type: s.name + "_hit", Scanner: s.name, Score: 1}}
	}
	if s.rewrite != nil {
		out := s.rewrite(input)
		res.Sanitized = &out
	}
	return res
}

type panicScanner struct{}

func (panicScanner) Name() string                           { return "boom" }
func (panicScanner) Scan(string, ScanContext) ScannerResult { panic("kaboom") }

func TestChain_EmptyAllows(t *testing.T) {
	res := NewChain(nil).Run(context.Background(), "hello", ScanContext{})

	assert.True(t, res.Safe)
	assert.Equal(t, DecisionAllow, res.Decision)
	assert.Equal(t, "hello", res.Sanitized)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Meta.ScannersRun)
}

func TestChain_ThreadsSanitizedText(t *testing.T) {
	first := &stubScanner{name: "first", decision: DecisionWarn, rewrite: func(s string) string { return s + "-1" }}
	second := &stubScanner{name: "second", decision: DecisionAllow}

	res := NewChain([]Scanner{first, second}).Run(context.Background(), "in", ScanContext{})

	require.Len(t, second.seen, 1)
	assert.Equal(t, "in-1", second.seen[0])
	assert.Equal(t, "in-1", res.Sanitized)
	assert.Equal(t, DecisionWarn, res.Decision)
	assert.False(t, res.Safe)
}

func TestChain_EarlyExitOnBlock(t *testing.T) {
	blocker := &stubScanner{name: "blocker", decision: DecisionBlock, violation: true}
	after := &stubScanner{name: "after", decision: DecisionAllow}

	res := NewChain([]Scanner{blocker, after}).Run(context.Background(), "x", ScanContext{})

	assert.Equal(t, DecisionBlock, res.Decision)
	assert.Equal(t, []string{"blocker"}, res.Meta.ScannersRun)
	assert.Empty(t, after.seen)
	assert.Len(t, res.Violations, 1)
}

func TestChain_WarnDoesNotExitEarly(t *testing.T) {
	warner := &stubScanner{name: "warner", decision: DecisionWarn}
	after := &stubScanner{name: "after", decision: DecisionAllow}

	res := NewChain([]Scanner{warner, after}).Run(context.Background(), "x", ScanContext{})

	assert.Equal(t, []string{"warner", "after"}, res.Meta.ScannersRun)
	assert.Equal(t, DecisionWarn, res.Decision)
}

func TestChain_MonotonicWithoutEarlyExit(t *testing.T) {
	orders := [][]Decision{
		{DecisionBlock, DecisionAllow, DecisionWarn},
		{DecisionAllow, DecisionWarn, DecisionAllow},
		{DecisionWarn, DecisionBlock, DecisionAllow},
	}

	for _, order := range orders {
		var scanners []Scanner
		want := DecisionAllow
		for i, d := range order {
			scanners = append(scanners, &stubScanner{name: string(rune('a' + i)), decision: d, violation: true})
			want = want.Max(d)
		}

		res := NewChain(scanners, WithEarlyExit(false)).Run(context.Background(), "x", ScanContext{})

		assert.Equal(t, want, res.Decision)
		assert.Len(t, res.Meta.ScannersRun, len(order))
		assert.Len(t, res.Violations, len(order))
	}
}

func TestChain_PanicBecomesBlock(t *testing.T) {
	after := &stubScanner{name: "after", decision: DecisionAllow}

	res := NewChain([]Scanner{panicScanner{}, after}).Run(context.Background(), "x", ScanContext{})

	assert.Equal(t, DecisionBlock, res.Decision)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "scanner_error", res.Violations[0].Type)
	assert.Equal(t, []string{"boom"}, res.Meta.ScannersRun)
}

func TestDecision_Max(t *testing.T) {
	tests := []struct {
		a, b, want Decision
	}{
		{DecisionAllow, DecisionWarn, DecisionWarn},
		{DecisionBlock, DecisionWarn, DecisionBlock},
		{DecisionWarn, DecisionAllow, DecisionWarn},
		{"", "", DecisionAllow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.Max(tt.b), "%s max %s", tt.a, tt.b)
	}
}

func TestParseDecision(t *testing.T) {
	d, ok := ParseDecision("AUDIT")
	assert.True(t, ok)
	assert.Equal(t, DecisionWarn, d)

	_, ok = ParseDecision("maybe")
	assert.False(t, ok)
}

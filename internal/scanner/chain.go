package scanner

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Chain is an ordered collection of scanners. Each scanner receives the text
// as rewritten by the previous one; the running decision only escalates.
type Chain struct {
	scanners  []Scanner
	earlyExit bool
	tracer    trace.Tracer
	logger    *zap.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithEarlyExit controls whether remaining scanners are skipped once the
// running decision reaches block. Enabled by default.
func WithEarlyExit(enabled bool) ChainOption {
	return func(c *Chain) { c.earlyExit = enabled }
}

// WithTracer records one span per scanner.
func WithTracer(tracer trace.Tracer) ChainOption {
	return func(c *Chain) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithLogger sets the chain logger.
func WithLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain creates a chain running scanners in the order provided.
func NewChain(scanners []Scanner, opts ...ChainOption) *Chain {
	c := &Chain{
		scanners:  append([]Scanner(nil), scanners...),
		earlyExit: true,
		tracer:    noop.NewTracerProvider().Tracer("aishield/scanner"),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scanners returns the registered scanners (for inspection/testing).
func (c *Chain) Scanners() []Scanner {
	return append([]Scanner(nil), c.scanners...)
}

// Run executes the scanners in order and folds their results.
func (c *Chain) Run(ctx context.Context, input string, sc ScanContext) ScanResult {
	start := time.Now()

	decision := DecisionAllow
	current := input
	violations := []Violation{}
	ran := make([]string, 0, len(c.scanners))

	for _, s := range c.scanners {
		_, span := c.tracer.Start(ctx, "scanner."+s.Name(),
			trace.WithAttributes(attribute.String("scanner.name", s.Name())),
		)

		res := c.runOne(s, current, sc)
		ran = append(ran, s.Name())

		span.SetAttributes(
			attribute.String("scanner.decision", string(res.Decision)),
			attribute.Int("scanner.violations", len(res.Violations)),
		)
		if res.Decision == DecisionBlock {
			span.SetStatus(codes.Error, "blocked")
		}
		span.End()

		decision = decision.Max(res.Decision)
		violations = append(violations, res.Violations...)
		if res.Sanitized != nil {
			current = *res.Sanitized
		}

		c.logger.Debug("scanner finished",
			zap.String("scanner", s.Name()),
			zap.String("decision", string(res.Decision)),
			zap.Int("violations", len(res.Violations)),
			zap.Duration("duration", res.Duration),
		)

		if c.earlyExit && decision == DecisionBlock {
			c.logger.Info("chain blocked, skipping remaining scanners",
				zap.String("scanner", s.Name()),
				zap.Int("skipped", len(c.scanners)-len(ran)),
			)
			break
		}
	}

	return ScanResult{
		Safe:       decision == DecisionAllow,
		Decision:   decision,
		Sanitized:  current,
		Violations: violations,
		Meta: Meta{
			Duration:    time.Since(start),
			ScannersRun: ran,
			Preset:      sc.Preset,
		},
	}
}

// runOne invokes a scanner, converting a panic into a block so the chain can
// still return a well-formed result.
func (c *Chain) runOne(s Scanner, input string, sc ScanContext) (res ScannerResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("scanner panicked", zap.String("scanner", s.Name()), zap.Any("panic", r))
			res = ScannerResult{
				Decision: DecisionBlock,
				Violations: []Violation{{
					Type:      "scanner_error",
					Scanner:   s.Name(),
					Score:     1,
					Threshold: 1,
					Message:   fmt.Sprintf("scanner %s failed", s.Name()),
				}},
			}
		}
		res.Duration = time.Since(start)
		if res.Decision == "" {
			res.Decision = DecisionAllow
		}
	}()
	return s.Scan(input, sc)
}

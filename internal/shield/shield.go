// Package shield composes the scanner chain, result cache, cost tracker and
// audit logger behind one Scan / CheckBudget / RecordCost surface.
//
//	Scan ─► cache lookup ─► Chain (injection → pii → tools) ─► cache store
//	                    └──────────────► audit record ◄──────┘
//
// Scan never returns an error: a block is a decision, and store failures
// are logged rather than surfaced.
package shield

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/madetocreate/ai-shield/internal/audit"
	"github.com/madetocreate/ai-shield/internal/cache"
	"github.com/madetocreate/ai-shield/internal/cost"
	"github.com/madetocreate/ai-shield/internal/guardian"
	"github.com/madetocreate/ai-shield/internal/mcp"
	"github.com/madetocreate/ai-shield/internal/policy"
	"github.com/madetocreate/ai-shield/internal/redact"
	"github.com/madetocreate/ai-shield/internal/scanner"
)

// Options configures an Engine. The zero value runs every scanner under
// the default preset with caching on and auditing off.
type Options struct {
	Preset  string
	Presets *policy.Engine

	DisableInjection bool
	DisablePII       bool
	DisableTools     bool
	DisableEarlyExit bool

	// Strictness and InjectionThreshold override the preset threshold.
	// InjectionThreshold wins when both are set.
	Strictness         guardian.Strictness
	InjectionThreshold float64
	ExtraRules         []guardian.Rule

	// PIIAction and PIIActions override the preset's PII actions.
	PIIAction  redact.Action
	PIIActions map[redact.EntityType]redact.Action
	PIIExclude []redact.EntityType

	ToolPolicies map[string]mcp.ToolPolicy
	DefaultDeny  bool
	Pins         *mcp.PinStore

	DisableCache bool
	CacheSize    int
	CacheTTL     time.Duration

	// Budgets override the budgets derived from the preset.
	Budgets          map[string]cost.BudgetConfig
	Prices           *cost.PriceTable
	CounterStore     cost.CounterStore
	AnomalyThreshold float64
	SerializeBudget  bool

	// AuditStore enables auditing when set.
	AuditStore         audit.Store
	AuditBatchSize     int
	AuditFlushInterval time.Duration

	Logger *zap.Logger
	Tracer trace.Tracer
	Clock  func() time.Time

	// Closers are released by Engine.Close after the audit logger drains.
	Closers []io.Closer
}

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = 5 * time.Minute
)

// Engine is safe for concurrent use.
type Engine struct {
	opts    Options
	presets *policy.Engine
	preset  *policy.Preset
	pins    *mcp.PinStore
	log     *zap.Logger

	mu     sync.Mutex
	chains map[string]*scanner.Chain

	results *cache.Cache[scanner.ScanResult]
	costs   *cost.Tracker
	audit   *audit.Logger

	closeOnce sync.Once
	closeErr  error
}

// New validates opts and builds an engine. Configuration errors (unknown
// preset, bad rule, bad PII action, bad budget) fail here, never in Scan.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	presets := opts.Presets
	if presets == nil {
		var err error
		if presets, err = policy.NewEngine(); err != nil {
			return nil, err
		}
	}
	preset, err := presets.Resolve(opts.Preset)
	if err != nil {
		return nil, err
	}
	pins := opts.Pins
	if pins == nil {
		pins = mcp.NewPinStore()
	}

	e := &Engine{
		opts:    opts,
		presets: presets,
		preset:  preset,
		pins:    pins,
		log:     opts.Logger.Named("shield"),
		chains:  make(map[string]*scanner.Chain),
	}

	if _, err := e.chainFor(preset.Name); err != nil {
		return nil, err
	}

	if !opts.DisableCache {
		size, ttl := opts.CacheSize, opts.CacheTTL
		if size == 0 {
			size = defaultCacheSize
		}
		if ttl == 0 {
			ttl = defaultCacheTTL
		}
		e.results, err = cache.New[scanner.ScanResult](size, ttl,
			cache.WithClock(opts.Clock), cache.WithLogger(opts.Logger.Named("cache")))
		if err != nil {
			return nil, err
		}
	}

	e.costs, err = cost.NewTracker(cost.Config{
		Budgets:          budgetsFor(preset, opts.Budgets),
		DefaultBudget:    defaultBudgetFor(preset),
		Prices:           opts.Prices,
		Store:            opts.CounterStore,
		AnomalyThreshold: opts.AnomalyThreshold,
		Serialize:        opts.SerializeBudget,
	}, cost.WithClock(opts.Clock), cost.WithLogger(opts.Logger.Named("cost")))
	if err != nil {
		return nil, err
	}

	if opts.AuditStore != nil {
		e.audit = audit.NewLogger(opts.AuditStore, audit.LoggerConfig{
			BatchSize:     opts.AuditBatchSize,
			FlushInterval: opts.AuditFlushInterval,
		}, opts.Logger.Named("audit"))
	}

	return e, nil
}

// defaultBudgetFor applies the preset's daily budget to every entity.
func defaultBudgetFor(p *policy.Preset) *cost.BudgetConfig {
	daily := p.DailyBudget()
	if !daily.IsPositive() {
		return nil
	}
	return &cost.BudgetConfig{
		HardLimit: daily,
		SoftLimit: daily.Mul(decimal.NewFromFloat(p.SoftLimitRatio())),
		Period:    cost.PeriodDaily,
	}
}

// budgetsFor caps the global aggregate at the preset's monthly budget
// unless overridden.
func budgetsFor(p *policy.Preset, overrides map[string]cost.BudgetConfig) map[string]cost.BudgetConfig {
	out := make(map[string]cost.BudgetConfig, len(overrides)+1)
	if monthly := p.MonthlyBudget(); monthly.IsPositive() {
		out[cost.GlobalEntity] = cost.BudgetConfig{
			HardLimit: monthly,
			SoftLimit: monthly.Mul(decimal.NewFromFloat(p.SoftLimitRatio())),
			Period:    cost.PeriodMonthly,
		}
	}
	for id, b := range overrides {
		out[id] = b
	}
	return out
}

// chainFor returns the chain for a preset, building it on first use.
func (e *Engine) chainFor(name string) (*scanner.Chain, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.chains[name]; ok {
		return c, nil
	}

	p := e.preset
	if name != e.preset.Name {
		var err error
		if p, err = e.presets.Resolve(name); err != nil {
			return nil, err
		}
	}

	scanners, err := e.buildScanners(p)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.Name, err)
	}

	opts := []scanner.ChainOption{
		scanner.WithEarlyExit(!e.opts.DisableEarlyExit),
		scanner.WithLogger(e.opts.Logger.Named("chain")),
	}
	if e.opts.Tracer != nil {
		opts = append(opts, scanner.WithTracer(e.opts.Tracer))
	}
	c := scanner.NewChain(scanners, opts...)
	e.chains[name] = c
	return c, nil
}

func (e *Engine) buildScanners(p *policy.Preset) ([]scanner.Scanner, error) {
	var scanners []scanner.Scanner

	if !e.opts.DisableInjection {
		cfg := guardian.Config{Threshold: p.InjectionThreshold(), ExtraRules: e.opts.ExtraRules}
		if e.opts.Strictness != "" {
			cfg.Threshold = e.opts.Strictness.Threshold()
		}
		if e.opts.InjectionThreshold > 0 {
			cfg.Threshold = e.opts.InjectionThreshold
		}
		s, err := guardian.NewScanner(cfg)
		if err != nil {
			return nil, err
		}
		scanners = append(scanners, s)
	}

	if !e.opts.DisablePII {
		cfg := p.PIIConfig()
		if e.opts.PIIAction != "" {
			cfg.Action = e.opts.PIIAction
		}
		if cfg.PerType == nil {
			cfg.PerType = make(map[redact.EntityType]redact.Action, len(e.opts.PIIActions))
		}
		for t, a := range e.opts.PIIActions {
			cfg.PerType[t] = a
		}
		cfg.Exclude = e.opts.PIIExclude
		s, err := redact.NewScanner(cfg)
		if err != nil {
			return nil, err
		}
		scanners = append(scanners, s)
	}

	if !e.opts.DisableTools {
		scanners = append(scanners, mcp.NewScanner(mcp.Evaluator{
			DangerousPatterns: p.DangerousToolPatterns(),
			Policies:          e.opts.ToolPolicies,
			DefaultDeny:       e.opts.DefaultDeny,
			MaxChainDepth:     p.MaxToolChainDepth(),
		}, e.pins))
	}

	return scanners, nil
}

// Scan inspects input. A per-call sc.Preset selects another preset; an
// unknown override name fails closed with a block.
func (e *Engine) Scan(ctx context.Context, input string, sc scanner.ScanContext) scanner.ScanResult {
	name := sc.Preset
	if name == "" {
		name = e.preset.Name
	}
	sc.Preset = name

	var key string
	if e.results != nil {
		key = cacheKey(input, name, e.pins.Generation(), sc)
		if res, ok := e.results.Get(key); ok {
			out := res.Clone()
			out.Meta.Cached = true
			e.record(ctx, input, sc, out)
			return out
		}
	}

	chain, err := e.chainFor(name)
	if err != nil {
		e.log.Warn("scan with unusable preset", zap.String("preset", name), zap.Error(err))
		res := unknownPresetResult(input, name, err)
		e.record(ctx, input, sc, res)
		return res
	}

	res := chain.Run(ctx, input, sc)
	res.Meta.Preset = name

	if e.results != nil {
		e.results.Set(key, res.Clone())
	}
	e.record(ctx, input, sc, res)

	e.log.Debug("scan complete",
		zap.String("preset", name),
		zap.String("decision", string(res.Decision)),
		zap.Int("violations", len(res.Violations)),
		zap.Duration("duration", res.Meta.Duration))
	return res
}

func unknownPresetResult(input, name string, err error) scanner.ScanResult {
	return scanner.ScanResult{
		Safe:      false,
		Decision:  scanner.DecisionBlock,
		Sanitized: input,
		Violations: []scanner.Violation{{
			Type:    "unknown_preset",
			Scanner: "shield",
			Message: err.Error(),
		}},
		Meta: scanner.Meta{ScannersRun: []string{}, Preset: name},
	}
}

func (e *Engine) record(ctx context.Context, input string, sc scanner.ScanContext, res scanner.ScanResult) {
	if e.audit == nil {
		return
	}
	e.audit.Log(ctx, audit.NewRecord(res, audit.Metadata{
		RequestType: audit.RequestScan,
		SessionID:   sc.SessionID,
		AgentID:     sc.AgentID,
		UserID:      sc.UserID,
		Input:       input,
	}))
}

// CheckBudget is an advisory pre-flight for a model call. Denials are
// audited.
func (e *Engine) CheckBudget(ctx context.Context, entityID, model string, inputTokens, outputTokens int) cost.BudgetCheck {
	check := e.costs.CheckBudget(ctx, entityID, model, inputTokens, outputTokens)
	e.noteBudget(ctx, entityID, model, check)
	return check
}

// CheckAndRecord records the call only when the budget allows it. With
// SerializeBudget, concurrent calls for one entity cannot both pass.
func (e *Engine) CheckAndRecord(ctx context.Context, entityID, model string, inputTokens, outputTokens int) (cost.BudgetCheck, *cost.CostRecord) {
	check, rec := e.costs.CheckAndRecord(ctx, entityID, model, inputTokens, outputTokens)
	e.noteBudget(ctx, entityID, model, check)
	if rec != nil {
		e.recordCost(ctx, *rec)
	}
	return check, rec
}

func (e *Engine) noteBudget(ctx context.Context, entityID, model string, check cost.BudgetCheck) {
	if check.Allowed {
		if check.Warning != "" {
			e.log.Warn("budget soft limit", zap.String("entity", entityID), zap.String("warning", check.Warning))
		}
		return
	}
	e.log.Warn("budget exceeded",
		zap.String("entity", entityID),
		zap.String("scope", check.Scope),
		zap.String("spend", check.CurrentSpend.String()))
	if e.audit == nil {
		return
	}
	estimate := check.EstimatedCost
	e.audit.Log(ctx, audit.NewRecord(scanner.ScanResult{
		Decision: scanner.DecisionBlock,
		Violations: []scanner.Violation{{
			Type:    "budget_exceeded",
			Scanner: "cost",
			Message: fmt.Sprintf("scope %s spend %s", check.Scope, check.CurrentSpend.StringFixed(4)),
		}},
	}, audit.Metadata{
		RequestType: audit.RequestBudget,
		AgentID:     entityID,
		Model:       model,
		CostUSD:     &estimate,
	}))
}

// RecordCost writes a completed call to the ledger and the audit trail.
func (e *Engine) RecordCost(ctx context.Context, entityID, model string, inputTokens, outputTokens int) cost.CostRecord {
	rec := e.costs.RecordCost(ctx, entityID, model, inputTokens, outputTokens)
	e.recordCost(ctx, rec)
	return rec
}

func (e *Engine) recordCost(ctx context.Context, rec cost.CostRecord) {
	if e.audit != nil {
		usd := rec.Cost
		e.audit.Log(ctx, audit.NewRecord(scanner.ScanResult{Decision: scanner.DecisionAllow}, audit.Metadata{
			RequestType: audit.RequestCost,
			AgentID:     rec.EntityID,
			Model:       rec.Model,
			CostUSD:     &usd,
		}))
	}
	if a := e.costs.CheckAnomaly(rec.EntityID); a.Anomalous {
		e.log.Warn("anomalous spend",
			zap.String("entity", rec.EntityID),
			zap.Float64("z_score", a.ZScore),
			zap.Float64("mean", a.Mean))
	}
}

// PinManifest trusts the current tool set of a server. Cached results are
// dropped; results still in flight land under the previous pin generation.
func (e *Engine) PinManifest(serverID string, toolNames []string) mcp.ToolManifestPin {
	pin := mcp.PinManifest(serverID, toolNames)
	e.pins.Pin(pin)
	if e.results != nil {
		e.results.Clear()
	}
	e.log.Info("manifest pinned", zap.String("server", serverID), zap.Int("tools", pin.ToolCount))
	return pin
}

// VerifyManifest compares a live tool list against the server's pin. ok is
// false when the server has never been pinned.
func (e *Engine) VerifyManifest(serverID string, liveToolNames []string) (check mcp.ManifestCheck, ok bool) {
	pin, ok := e.pins.Get(serverID)
	if !ok {
		return mcp.ManifestCheck{}, false
	}
	return mcp.VerifyManifest(pin, liveToolNames), true
}

// Preset returns a copy of the engine's default preset.
func (e *Engine) Preset() *policy.Preset {
	p, _ := e.presets.Resolve(e.preset.Name)
	return p
}

// Costs exposes the tracker for history and anomaly queries.
func (e *Engine) Costs() *cost.Tracker { return e.costs }

// Pins exposes the manifest pin store. Pins added through it also move the
// cache to a new generation.
func (e *Engine) Pins() *mcp.PinStore { return e.pins }

// Close flushes the audit logger, stops its timer and releases Closers.
// It is safe to call more than once; it should be deferred by every owner.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if e.audit != nil {
			errs = append(errs, e.audit.Close())
		}
		for _, c := range e.opts.Closers {
			errs = append(errs, c.Close())
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}

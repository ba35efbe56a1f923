// Package cost prices model calls, enforces per-entity spend budgets over
// hourly, daily or monthly windows, and flags anomalous spend.
//
// CheckBudget is an advisory pre-flight and RecordCost is the ledger write.
// Calling them separately lets concurrent requests for one entity both pass
// the check before either records; use CheckAndRecord with Serialize for
// strict enforcement, or a shared CounterStore across processes.
package cost

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GlobalEntity is the reserved scope that aggregates every entity.
const GlobalEntity = "global"

// ErrInvalidBudget is returned for a negative limit, a soft limit above the
// hard limit, or an unknown period.
var ErrInvalidBudget = errors.New("cost: invalid budget")

// BudgetConfig limits spend for one scope. A zero limit is disabled.
type BudgetConfig struct {
	SoftLimit decimal.Decimal
	HardLimit decimal.Decimal
	Period    Period
}

func (b BudgetConfig) validate(scope string) (BudgetConfig, error) {
	if b.SoftLimit.IsNegative() || b.HardLimit.IsNegative() {
		return b, fmt.Errorf("%w: %s: negative limit", ErrInvalidBudget, scope)
	}
	if b.HardLimit.IsPositive() && b.SoftLimit.GreaterThan(b.HardLimit) {
		return b, fmt.Errorf("%w: %s: soft limit %s above hard limit %s", ErrInvalidBudget, scope, b.SoftLimit, b.HardLimit)
	}
	p, err := ParsePeriod(string(b.Period))
	if err != nil {
		return b, err
	}
	b.Period = p
	return b, nil
}

// CostRecord is one priced model call. Records are never mutated.
type CostRecord struct {
	EntityID     string          `json:"entity_id"`
	Model        string          `json:"model"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	Timestamp    time.Time       `json:"timestamp"`
}

// BudgetCheck is the result of a pre-flight check. CurrentSpend and
// RemainingBudget describe the most constrained scope.
type BudgetCheck struct {
	Allowed         bool            `json:"allowed"`
	Scope           string          `json:"scope,omitempty"`
	CurrentSpend    decimal.Decimal `json:"current_spend"`
	RemainingBudget decimal.Decimal `json:"remaining_budget"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"`
	Unlimited       bool            `json:"unlimited,omitempty"`
	Warning         string          `json:"warning,omitempty"`
}

// Config configures a Tracker.
type Config struct {
	// Budgets are keyed by entity id. GlobalEntity budgets the aggregate.
	Budgets map[string]BudgetConfig

	// DefaultBudget applies to entities without a Budgets entry.
	DefaultBudget *BudgetConfig

	// Prices defaults to DefaultPriceTable.
	Prices *PriceTable

	// Store shares counters between processes. Nil keeps accounting local.
	Store CounterStore

	// AnomalyThreshold is the z-score above which spend is anomalous.
	// Defaults to 2.5.
	AnomalyThreshold float64

	// HistoryLimit bounds the closed-window totals kept per scope.
	// Defaults to 90.
	HistoryLimit int

	// Serialize makes CheckAndRecord hold a per-entity lock across the
	// check and the record.
	Serialize bool
}

// Option configures optional Tracker collaborators.
type Option func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// scope is the ledger for one entity (or the global aggregate) within its
// current window.
type scope struct {
	window  string
	spend   decimal.Decimal
	records []CostRecord
	history []decimal.Decimal
}

// Tracker is safe for concurrent use.
type Tracker struct {
	cfg    Config
	prices *PriceTable
	now    func() time.Time
	log    *zap.Logger

	mu     sync.Mutex
	scopes map[string]*scope

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewTracker validates cfg and returns a tracker.
func NewTracker(cfg Config, opts ...Option) (*Tracker, error) {
	budgets := make(map[string]BudgetConfig, len(cfg.Budgets))
	for id, b := range cfg.Budgets {
		v, err := b.validate(id)
		if err != nil {
			return nil, err
		}
		budgets[id] = v
	}
	cfg.Budgets = budgets

	if cfg.DefaultBudget != nil {
		v, err := cfg.DefaultBudget.validate("default")
		if err != nil {
			return nil, err
		}
		cfg.DefaultBudget = &v
	}
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = 2.5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 90
	}

	t := &Tracker{
		cfg:    cfg,
		prices: cfg.Prices,
		now:    time.Now,
		log:    zap.NewNop(),
		scopes: make(map[string]*scope),
		locks:  make(map[string]*sync.Mutex),
	}
	if t.prices == nil {
		t.prices = DefaultPriceTable()
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Estimate prices a request without touching any ledger.
func (t *Tracker) Estimate(model string, inputTokens, outputTokens int) decimal.Decimal {
	return t.prices.Estimate(model, inputTokens, outputTokens)
}

// Prices returns the tracker's price table.
func (t *Tracker) Prices() *PriceTable { return t.prices }

func (t *Tracker) budgetFor(id string) (BudgetConfig, bool) {
	if b, ok := t.cfg.Budgets[id]; ok {
		return b, true
	}
	if id != GlobalEntity && t.cfg.DefaultBudget != nil {
		return *t.cfg.DefaultBudget, true
	}
	return BudgetConfig{}, false
}

func (t *Tracker) periodFor(id string) Period {
	if b, ok := t.budgetFor(id); ok {
		return b.Period
	}
	return PeriodDaily
}

// scopeLocked returns the ledger for id, rolling it over when its window has
// closed. The closed window's total joins the history series.
func (t *Tracker) scopeLocked(id string, now time.Time) *scope {
	window := t.periodFor(id).WindowKey(now)
	s, ok := t.scopes[id]
	if !ok {
		s = &scope{window: window}
		t.scopes[id] = s
		return s
	}
	if s.window != window {
		s.history = append(s.history, s.spend)
		// Idle windows count as zero spend.
		idle := min(t.periodFor(id).windowsBetween(s.window, window), t.cfg.HistoryLimit)
		for range idle {
			s.history = append(s.history, decimal.Zero)
		}
		if over := len(s.history) - t.cfg.HistoryLimit; over > 0 {
			s.history = s.history[over:]
		}
		t.log.Debug("budget window rolled over",
			zap.String("scope", id),
			zap.String("closed", s.window),
			zap.String("spend", s.spend.String()))
		s.window = window
		s.spend = decimal.Zero
		s.records = nil
	}
	return s
}

// spend returns the current window's spend for id, preferring the shared
// store and falling back to the local ledger when it fails.
func (t *Tracker) spend(ctx context.Context, id string, now time.Time) (decimal.Decimal, string) {
	t.mu.Lock()
	s := t.scopeLocked(id, now)
	local, window := s.spend, s.window
	t.mu.Unlock()

	if t.cfg.Store == nil {
		return local, window
	}
	total, err := t.cfg.Store.Get(ctx, id, window)
	if err != nil {
		t.log.Warn("cost counter read failed, using local ledger",
			zap.String("scope", id), zap.Error(err))
		return local, window
	}
	return total, window
}

// CheckBudget reports whether spending the estimated cost of the request
// would stay within the entity and global hard limits. Crossing a soft limit
// is allowed with a warning.
func (t *Tracker) CheckBudget(ctx context.Context, entityID, model string, inputTokens, outputTokens int) BudgetCheck {
	estimate := t.Estimate(model, inputTokens, outputTokens)
	now := t.now()

	check := BudgetCheck{Allowed: true, Unlimited: true, EstimatedCost: estimate}
	var tightest *decimal.Decimal

	for _, id := range scopesOf(entityID) {
		budget, ok := t.budgetFor(id)
		if !ok || (budget.HardLimit.IsZero() && budget.SoftLimit.IsZero()) {
			continue
		}
		current, _ := t.spend(ctx, id, now)
		projected := current.Add(estimate)

		if budget.HardLimit.IsPositive() {
			remaining := budget.HardLimit.Sub(current)
			if tightest == nil || remaining.LessThan(*tightest) {
				tightest = &remaining
				check.Scope = id
				check.CurrentSpend = current
				check.RemainingBudget = decimal.Max(remaining, decimal.Zero)
				check.Unlimited = false
			}
			if projected.GreaterThan(budget.HardLimit) {
				check.Allowed = false
				check.Warning = fmt.Sprintf("%s budget exceeded: projected %s of %s %s limit",
					id, projected.StringFixed(4), budget.HardLimit.StringFixed(2), budget.Period)
				continue
			}
		}
		if check.Warning == "" && budget.SoftLimit.IsPositive() && projected.GreaterThanOrEqual(budget.SoftLimit) {
			check.Warning = fmt.Sprintf("%s soft limit reached: projected %s of %s %s soft limit",
				id, projected.StringFixed(4), budget.SoftLimit.StringFixed(2), budget.Period)
		}
	}

	if !check.Allowed {
		t.log.Info("budget check denied",
			zap.String("entity", entityID),
			zap.String("model", model),
			zap.String("estimate", estimate.String()))
	}
	return check
}

// RecordCost prices a completed call and appends it to the entity and
// global ledgers. It never enforces limits.
func (t *Tracker) RecordCost(ctx context.Context, entityID, model string, inputTokens, outputTokens int) CostRecord {
	now := t.now()
	rec := CostRecord{
		EntityID:     entityID,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         t.Estimate(model, inputTokens, outputTokens),
		Timestamp:    now.UTC(),
	}

	ids := scopesOf(entityID)
	windows := make([]string, len(ids))

	t.mu.Lock()
	for i, id := range ids {
		s := t.scopeLocked(id, now)
		s.spend = s.spend.Add(rec.Cost)
		s.records = append(s.records, rec)
		windows[i] = s.window
	}
	t.mu.Unlock()

	if t.cfg.Store != nil {
		for i, id := range ids {
			if _, err := t.cfg.Store.Add(ctx, id, windows[i], rec.Cost); err != nil {
				t.log.Warn("cost counter write failed, local ledger only",
					zap.String("scope", id), zap.Error(err))
			}
		}
	}
	return rec
}

// CheckAndRecord checks the budget and, when allowed, records the cost.
// With Serialize set the pair runs under a per-entity lock, so concurrent
// calls for one entity cannot overshoot its hard limit. The global scope is
// shared between entities and is not serialized.
func (t *Tracker) CheckAndRecord(ctx context.Context, entityID, model string, inputTokens, outputTokens int) (BudgetCheck, *CostRecord) {
	if t.cfg.Serialize {
		l := t.entityLock(entityID)
		l.Lock()
		defer l.Unlock()
	}

	check := t.CheckBudget(ctx, entityID, model, inputTokens, outputTokens)
	if !check.Allowed {
		return check, nil
	}
	rec := t.RecordCost(ctx, entityID, model, inputTokens, outputTokens)
	return check, &rec
}

func (t *Tracker) entityLock(id string) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	return l
}

// Spend returns the local ledger's spend for the entity's current window.
func (t *Tracker) Spend(entityID string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scopeLocked(entityID, t.now()).spend
}

// Records returns a copy of the entity's records in the current window.
func (t *Tracker) Records(entityID string) []CostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.scopeLocked(entityID, t.now())
	return append([]CostRecord(nil), s.records...)
}

// History returns a copy of the entity's closed-window totals, oldest first.
func (t *Tracker) History(entityID string) []decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.scopeLocked(entityID, t.now())
	return append([]decimal.Decimal(nil), s.history...)
}

// CheckAnomaly scores the entity's current window against its history.
func (t *Tracker) CheckAnomaly(entityID string) Anomaly {
	t.mu.Lock()
	s := t.scopeLocked(entityID, t.now())
	current := s.spend
	history := append([]decimal.Decimal(nil), s.history...)
	t.mu.Unlock()

	return DetectAnomaly(current, history, t.cfg.AnomalyThreshold)
}

func scopesOf(entityID string) []string {
	if entityID == "" || entityID == GlobalEntity {
		return []string{GlobalEntity}
	}
	return []string{entityID, GlobalEntity}
}

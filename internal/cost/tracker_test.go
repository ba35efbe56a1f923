package cost

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// flatPrices charges $1 per 1000 input tokens so amounts are easy to read.
func flatPrices() *PriceTable {
	return NewPriceTable(nil, nil, Price{Input: decimal.NewFromInt(1000), Output: decimal.Zero})
}

func dollars(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newTracker(t *testing.T, cfg Config) (*Tracker, *clock) {
	t.Helper()
	c := &clock{now: mustTime("2026-10-15T10:00:00Z")}
	if cfg.Prices == nil {
		cfg.Prices = flatPrices()
	}
	tr, err := NewTracker(cfg, WithClock(c.Now))
	require.NoError(t, err)
	return tr, c
}

func TestNewTracker_InvalidBudgets(t *testing.T) {
	tests := map[string]BudgetConfig{
		"negative":     {HardLimit: dollars(-1)},
		"soft > hard":  {SoftLimit: dollars(20), HardLimit: dollars(10)},
		"unknown span": {HardLimit: dollars(10), Period: "weekly"},
	}
	for name, b := range tests {
		_, err := NewTracker(Config{Budgets: map[string]BudgetConfig{"app": b}})
		assert.ErrorIs(t, err, ErrInvalidBudget, name)
	}
}

func TestCheckBudget_Unconfigured(t *testing.T) {
	tr, _ := newTracker(t, Config{})
	check := tr.CheckBudget(context.Background(), "app", "any", 5000, 0)
	assert.True(t, check.Allowed)
	assert.True(t, check.Unlimited)
	assert.True(t, check.EstimatedCost.Equal(dollars(5)))
}

func TestCheckBudget_SoftAndHardLimits(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{Budgets: map[string]BudgetConfig{
		"app": {SoftLimit: dollars(8), HardLimit: dollars(10)},
	}})

	tr.RecordCost(ctx, "app", "m", 6000, 0) // $6

	check := tr.CheckBudget(ctx, "app", "m", 1000, 0) // projected $7
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Warning)
	assert.True(t, check.CurrentSpend.Equal(dollars(6)))
	assert.True(t, check.RemainingBudget.Equal(dollars(4)))

	check = tr.CheckBudget(ctx, "app", "m", 3000, 0) // projected $9
	assert.True(t, check.Allowed)
	assert.Contains(t, check.Warning, "soft limit")

	check = tr.CheckBudget(ctx, "app", "m", 5000, 0) // projected $11
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Warning, "exceeded")
	assert.Equal(t, "app", check.Scope)
}

func TestCheckBudget_GlobalScope(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{Budgets: map[string]BudgetConfig{
		GlobalEntity: {HardLimit: dollars(10)},
		"a":          {HardLimit: dollars(100)},
	}})

	tr.RecordCost(ctx, "a", "m", 5000, 0)
	tr.RecordCost(ctx, "b", "m", 4000, 0)

	check := tr.CheckBudget(ctx, "a", "m", 2000, 0)
	assert.False(t, check.Allowed, "global limit applies across entities")
	assert.Equal(t, GlobalEntity, check.Scope)
	assert.True(t, check.CurrentSpend.Equal(dollars(9)))
}

func TestRecordCost_DoesNotEnforce(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{Budgets: map[string]BudgetConfig{"app": {HardLimit: dollars(1)}}})

	rec := tr.RecordCost(ctx, "app", "m", 5000, 0)
	assert.True(t, rec.Cost.Equal(dollars(5)))
	assert.True(t, tr.Spend("app").Equal(dollars(5)))
	assert.Len(t, tr.Records("app"), 1)
}

func TestDefaultBudget(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{DefaultBudget: &BudgetConfig{HardLimit: dollars(3)}})

	tr.RecordCost(ctx, "anyone", "m", 3000, 0)
	assert.False(t, tr.CheckBudget(ctx, "anyone", "m", 1, 0).Allowed)
	assert.True(t, tr.CheckBudget(ctx, "someone-else", "m", 1000, 0).Allowed)
}

func TestWindowRollover(t *testing.T) {
	ctx := context.Background()
	tr, c := newTracker(t, Config{Budgets: map[string]BudgetConfig{
		"app": {HardLimit: dollars(10), Period: PeriodDaily},
	}})

	tr.RecordCost(ctx, "app", "m", 9000, 0)
	assert.False(t, tr.CheckBudget(ctx, "app", "m", 2000, 0).Allowed)

	c.Set(mustTime("2026-10-16T00:00:01Z"))
	assert.True(t, tr.Spend("app").IsZero())
	assert.True(t, tr.CheckBudget(ctx, "app", "m", 2000, 0).Allowed)

	history := tr.History("app")
	require.Len(t, history, 1)
	assert.True(t, history[0].Equal(dollars(9)))
	assert.Empty(t, tr.Records("app"))
}

func TestWindowRollover_IdleWindowsCountAsZero(t *testing.T) {
	ctx := context.Background()
	tr, c := newTracker(t, Config{Budgets: map[string]BudgetConfig{
		"app": {HardLimit: dollars(100), Period: PeriodDaily},
	}})

	tr.RecordCost(ctx, "app", "m", 9000, 0)
	c.Set(mustTime("2026-10-18T09:00:00Z"))
	tr.RecordCost(ctx, "app", "m", 1000, 0)

	history := tr.History("app")
	require.Len(t, history, 3)
	assert.True(t, history[0].Equal(dollars(9)))
	assert.True(t, history[1].IsZero())
	assert.True(t, history[2].IsZero())
}

func TestWindowRollover_IdleGapBoundedByHistoryLimit(t *testing.T) {
	ctx := context.Background()
	tr, c := newTracker(t, Config{HistoryLimit: 5})

	tr.RecordCost(ctx, "app", "m", 1000, 0)
	c.Set(mustTime("2027-10-15T10:00:00Z"))
	tr.RecordCost(ctx, "app", "m", 1000, 0)

	history := tr.History("app")
	require.Len(t, history, 5)
	for _, h := range history {
		assert.True(t, h.IsZero())
	}
}

func TestWindowsBetween(t *testing.T) {
	assert.Equal(t, 0, PeriodDaily.windowsBetween("2026-10-15", "2026-10-16"))
	assert.Equal(t, 2, PeriodDaily.windowsBetween("2026-10-15", "2026-10-18"))
	assert.Equal(t, 3, PeriodHourly.windowsBetween("2026-10-15T22", "2026-10-16T02"))
	assert.Equal(t, 11, PeriodMonthly.windowsBetween("2026-01", "2027-01"))
	assert.Equal(t, 0, PeriodDaily.windowsBetween("bogus", "2026-10-18"))
}

func TestHourlyWindow(t *testing.T) {
	ctx := context.Background()
	tr, c := newTracker(t, Config{Budgets: map[string]BudgetConfig{
		"app": {HardLimit: dollars(10), Period: PeriodHourly},
	}})

	tr.RecordCost(ctx, "app", "m", 4000, 0)
	c.Set(mustTime("2026-10-15T10:59:59Z"))
	assert.True(t, tr.Spend("app").Equal(dollars(4)))
	c.Set(mustTime("2026-10-15T11:00:00Z"))
	assert.True(t, tr.Spend("app").IsZero())
}

func TestCheckAndRecord_Serialized(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{
		Budgets:   map[string]BudgetConfig{"app": {HardLimit: dollars(10)}},
		Serialize: true,
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, rec := tr.CheckAndRecord(ctx, "app", "m", 1000, 0); rec != nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
	assert.True(t, tr.Spend("app").Equal(dollars(10)))
}

type failingStore struct{}

func (failingStore) Add(context.Context, string, string, decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("counter unavailable")
}

func (failingStore) Get(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("counter unavailable")
}

func TestCounterStoreFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t, Config{
		Budgets: map[string]BudgetConfig{"app": {HardLimit: dollars(5)}},
		Store:   failingStore{},
	})

	tr.RecordCost(ctx, "app", "m", 5000, 0)
	assert.False(t, tr.CheckBudget(ctx, "app", "m", 1000, 0).Allowed)
}

func TestSharedCounterStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore()
	cfg := Config{Budgets: map[string]BudgetConfig{"app": {HardLimit: dollars(10)}}, Store: store}

	a, _ := newTracker(t, cfg)
	b, _ := newTracker(t, cfg)

	a.RecordCost(ctx, "app", "m", 6000, 0)
	b.RecordCost(ctx, "app", "m", 3000, 0)

	check := a.CheckBudget(ctx, "app", "m", 2000, 0)
	assert.False(t, check.Allowed, "spend from another tracker must count")
	assert.True(t, check.CurrentSpend.Equal(dollars(9)))
}

func TestCheckAnomaly(t *testing.T) {
	ctx := context.Background()
	tr, c := newTracker(t, Config{})

	days := []string{"2026-10-01", "2026-10-02", "2026-10-03", "2026-10-04"}
	for _, d := range days {
		c.Set(mustTime(d + "T12:00:00Z"))
		tr.RecordCost(ctx, "app", "m", 1000, 0)
	}
	c.Set(mustTime("2026-10-05T12:00:00Z"))
	tr.RecordCost(ctx, "app", "m", 50000, 0)

	a := tr.CheckAnomaly("app")
	assert.Equal(t, 4, a.Samples)
	assert.True(t, a.Anomalous)
}

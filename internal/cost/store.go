package cost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/madetocreate/ai-shield/internal/database"
)

// CounterStore is a shared spend counter for deployments where several
// processes enforce one budget. Add must be atomic per (key, window).
type CounterStore interface {
	// Add increments the counter and returns the new total.
	Add(ctx context.Context, key, window string, amount decimal.Decimal) (decimal.Decimal, error)
	// Get returns the current total, zero when absent.
	Get(ctx context.Context, key, window string) (decimal.Decimal, error)
}

// MemoryCounterStore is a process-local CounterStore.
type MemoryCounterStore struct {
	mu     sync.Mutex
	totals map[string]decimal.Decimal
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{totals: make(map[string]decimal.Decimal)}
}

func (m *MemoryCounterStore) Add(_ context.Context, key, window string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key + "\x00" + window
	m.totals[k] = m.totals[k].Add(amount)
	return m.totals[k], nil
}

func (m *MemoryCounterStore) Get(_ context.Context, key, window string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[key+"\x00"+window], nil
}

// CounterSchema creates the table used by PostgresCounterStore.
const CounterSchema = `CREATE TABLE IF NOT EXISTS aishield_cost_counters (
	entity_id  TEXT        NOT NULL,
	window_key TEXT        NOT NULL,
	amount     NUMERIC     NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_id, window_key)
)`

// PostgresCounterStore keeps counters in Postgres. Increments are a single
// upsert, so concurrent processes never lose an update.
type PostgresCounterStore struct {
	db database.Querier
}

func NewPostgresCounterStore(db database.Querier) *PostgresCounterStore {
	return &PostgresCounterStore{db: db}
}

// EnsureSchema creates the counters table if it does not exist.
func (s *PostgresCounterStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, CounterSchema); err != nil {
		return fmt.Errorf("creating cost counter table: %w", err)
	}
	return nil
}

func (s *PostgresCounterStore) Add(ctx context.Context, key, window string, amount decimal.Decimal) (decimal.Decimal, error) {
	var total string
	err := s.db.QueryRow(ctx,
		`INSERT INTO aishield_cost_counters (entity_id, window_key, amount)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (entity_id, window_key)
		 DO UPDATE SET amount = aishield_cost_counters.amount + EXCLUDED.amount, updated_at = now()
		 RETURNING amount::TEXT`,
		key, window, amount.String(),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("incrementing cost counter: %w", err)
	}
	return decimal.NewFromString(total)
}

func (s *PostgresCounterStore) Get(ctx context.Context, key, window string) (decimal.Decimal, error) {
	var total string
	err := s.db.QueryRow(ctx,
		`SELECT amount::TEXT FROM aishield_cost_counters WHERE entity_id = $1 AND window_key = $2`,
		key, window,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("reading cost counter: %w", err)
	}
	return decimal.NewFromString(total)
}

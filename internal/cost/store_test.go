package cost

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

// mockDB implements database.Querier with an in-memory counter table.
type mockDB struct {
	mu     sync.Mutex
	totals map[string]decimal.Decimal
	execs  []string
}

func (m *mockDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (m *mockDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := args[0].(string) + "/" + args[1].(string)

	if strings.HasPrefix(strings.TrimSpace(sql), "INSERT") {
		amount := decimal.RequireFromString(args[2].(string))
		m.totals[key] = m.totals[key].Add(amount)
		return fakeRow{value: m.totals[key].String()}
	}
	total, ok := m.totals[key]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: total.String()}
}

func TestPostgresCounterStore(t *testing.T) {
	ctx := context.Background()
	db := &mockDB{totals: map[string]decimal.Decimal{}}
	store := NewPostgresCounterStore(db)

	require.NoError(t, store.EnsureSchema(ctx))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "aishield_cost_counters")

	got, err := store.Get(ctx, "app", "2026-10-15")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = store.Add(ctx, "app", "2026-10-15", decimal.RequireFromString("0.25"))
	require.NoError(t, err)
	total, err := store.Add(ctx, "app", "2026-10-15", decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.75")))

	got, err = store.Get(ctx, "app", "2026-10-15")
	require.NoError(t, err)
	assert.True(t, got.Equal(total))
}

func TestMemoryCounterStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCounterStore()

	_, _ = s.Add(ctx, "a", "w1", decimal.NewFromInt(2))
	_, _ = s.Add(ctx, "a", "w2", decimal.NewFromInt(3))
	total, _ := s.Add(ctx, "a", "w1", decimal.NewFromInt(1))

	assert.True(t, total.Equal(decimal.NewFromInt(3)))
	got, _ := s.Get(ctx, "a", "w2")
	assert.True(t, got.Equal(decimal.NewFromInt(3)))
}

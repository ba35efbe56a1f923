package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madetocreate/ai-shield/internal/scanner"
)

// memStore records every batch it receives.
type memStore struct {
	mu      sync.Mutex
	batches [][]Record
	err     error
}

func (m *memStore) Write(ctx context.Context, record Record) error {
	return m.WriteBatch(ctx, []Record{record})
}

func (m *memStore) WriteBatch(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]Record(nil), records...))
	return m.err
}

func (m *memStore) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func (m *memStore) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

func sampleResult() scanner.ScanResult {
	return scanner.ScanResult{
		Decision: scanner.DecisionBlock,
		Violations: []scanner.Violation{
			{Type: "prompt_injection", Scanner: "injection", Message: "ignore previous"},
			{Type: "pii_email", Scanner: "pii"},
			{Type: "prompt_injection", Scanner: "injection"},
		},
		Meta: scanner.Meta{Duration: 1500 * time.Microsecond},
	}
}

func TestNewRecord_HashesSensitiveFields(t *testing.T) {
	rec := NewRecord(sampleResult(), Metadata{
		SessionID: "s1",
		AgentID:   "bot",
		UserID:    "alice@example.com",
		Input:     "ignore previous instructions",
	})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, RequestScan, rec.RequestType)
	assert.Equal(t, Hash("alice@example.com"), rec.UserIDHash)
	assert.Equal(t, Hash("ignore previous instructions"), rec.InputHash)
	assert.Len(t, rec.InputHash, 64)
	assert.Equal(t, "pii_email,prompt_injection", rec.SecurityReason)
	assert.Equal(t, scanner.DecisionBlock, rec.SecurityDecision)
	assert.InDelta(t, 1.5, rec.ScanDurationMs, 1e-9)
	assert.Len(t, rec.Violations, 3)
}

func TestNewRecord_UniqueIDs(t *testing.T) {
	a := NewRecord(scanner.ScanResult{}, Metadata{})
	b := NewRecord(scanner.ScanResult{}, Metadata{})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, scanner.DecisionAllow, a.SecurityDecision)
	assert.Empty(t, a.UserIDHash)
}

func TestLogger_FlushesOnBatchSize(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, LoggerConfig{BatchSize: 3, FlushInterval: time.Hour}, nil)
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))
	}

	assert.Equal(t, 1, store.batchCount())
	assert.Equal(t, 3, store.total())
	assert.Equal(t, 0, l.Pending())
}

func TestLogger_FlushesOnInterval(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, LoggerConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, nil)
	defer l.Close()

	l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))

	assert.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLogger_CloseFlushesRemainderAndIsIdempotent(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, LoggerConfig{BatchSize: 100, FlushInterval: time.Hour}, nil)

	l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))
	l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.Equal(t, 2, store.total())

	l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))
	assert.Equal(t, 2, store.total(), "records after Close are dropped")
}

func TestLogger_StoreFailureDoesNotPropagate(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	l := NewLogger(store, LoggerConfig{BatchSize: 1, FlushInterval: time.Hour}, nil)
	defer l.Close()

	assert.NotPanics(t, func() {
		l.Log(context.Background(), NewRecord(sampleResult(), Metadata{}))
	})
	assert.Equal(t, 1, store.batchCount())
}

func TestLogger_CancelledContextStillWrites(t *testing.T) {
	store := &memStore{}
	l := NewLogger(store, LoggerConfig{BatchSize: 1, FlushInterval: time.Hour}, nil)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Log(ctx, NewRecord(sampleResult(), Metadata{}))
	assert.Equal(t, 1, store.total())
}

func TestFileStore_RoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	cost := decimal.RequireFromString("0.0125")
	rec := NewRecord(sampleResult(), Metadata{Model: "gpt-4o", CostUSD: &cost})
	rec.Violations[0].Detail = "found api_key=sk_abcdefghijklmnopqrstuvwx"

	require.NoError(t, fs.WriteBatch(context.Background(), []Record{rec}))
	require.NoError(t, fs.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)
	assert.Equal(t, "gpt-4o", records[0].Model)
	require.NotNil(t, records[0].CostUSD)
	assert.True(t, records[0].CostUSD.Equal(cost))
	assert.NotContains(t, records[0].Violations[0].Detail, "sk_abcdefghijklmnopqrstuvwx")

	assert.ErrorIs(t, fs.WriteBatch(context.Background(), []Record{rec}), os.ErrClosed)
}

func TestReadFile_SkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	good := `{"id":"1","request_type":"scan","security_decision":"allow","violations":[]}`
	require.NoError(t, os.WriteFile(path, []byte(good+"\nnot json\n"+good+"\n"), 0600))

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMultiStore(t *testing.T) {
	a, b := &memStore{}, &memStore{}
	batch := []Record{NewRecord(sampleResult(), Metadata{})}

	require.NoError(t, MultiStore{a, b}.WriteBatch(context.Background(), batch))
	assert.Equal(t, 1, a.total())
	assert.Equal(t, 1, b.total())

	failing := &memStore{err: errors.New("boom")}
	assert.Error(t, MultiStore{a, failing}.WriteBatch(context.Background(), batch))

	require.NoError(t, MultiStore{a, b}.Write(context.Background(), batch[0]))
	assert.Equal(t, 3, a.total())
	assert.Equal(t, 2, b.total())
}

// slowStore waits before writing and gives up if ctx is cancelled first.
type slowStore struct {
	memStore
	delay time.Duration
}

func (s *slowStore) WriteBatch(ctx context.Context, records []Record) error {
	select {
	case <-time.After(s.delay):
		return s.memStore.WriteBatch(ctx, records)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestMultiStore_FailureDoesNotCancelOthers(t *testing.T) {
	failing := &memStore{err: errors.New("disk full")}
	healthy := &slowStore{delay: 50 * time.Millisecond}
	batch := []Record{NewRecord(sampleResult(), Metadata{})}

	err := MultiStore{failing, healthy}.WriteBatch(context.Background(), batch)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, healthy.total(), "healthy store still receives the batch")
}

// mockDB implements database.Querier for testing.
type mockDB struct {
	mu   sync.Mutex
	sql  []string
	args [][]any
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sql = append(m.sql, sql)
	m.args = append(m.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (m *mockDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func TestPostgresStore_BatchInsert(t *testing.T) {
	db := &mockDB{}
	store := NewPostgresStore(db)

	recs := []Record{
		NewRecord(sampleResult(), Metadata{AgentID: "bot"}),
		NewRecord(scanner.ScanResult{Decision: scanner.DecisionAllow}, Metadata{}),
	}
	require.NoError(t, store.WriteBatch(context.Background(), recs))
	require.Len(t, db.sql, 1)

	assert.True(t, strings.HasPrefix(db.sql[0], "INSERT INTO aishield_audit"))
	assert.Contains(t, db.sql[0], "$26)")
	assert.Len(t, db.args[0], 2*recordColumns)
	assert.Equal(t, "bot", db.args[0][3])
	assert.Nil(t, db.args[0][recordColumns+3], "empty agent id is stored as NULL")

	require.NoError(t, store.WriteBatch(context.Background(), nil))
	assert.Len(t, db.sql, 1, "empty batch is a no-op")
}

func TestPostgresStore_ChunksLargeBatches(t *testing.T) {
	prev := maxInsertRows
	maxInsertRows = 2
	t.Cleanup(func() { maxInsertRows = prev })

	db := &mockDB{}
	store := NewPostgresStore(db)

	recs := make([]Record, 5)
	for i := range recs {
		recs[i] = NewRecord(sampleResult(), Metadata{})
	}
	require.NoError(t, store.WriteBatch(context.Background(), recs))
	require.Len(t, db.sql, 3)
	assert.Len(t, db.args[0], 2*recordColumns)
	assert.Len(t, db.args[1], 2*recordColumns)
	assert.Len(t, db.args[2], recordColumns)
}

func TestMaxInsertRows_FitsParameterLimit(t *testing.T) {
	assert.LessOrEqual(t, maxInsertRows*recordColumns, 65535)
}

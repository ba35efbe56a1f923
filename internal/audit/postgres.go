package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/madetocreate/ai-shield/internal/database"
)

// Schema creates the table used by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS aishield_audit (
	id                UUID        PRIMARY KEY,
	ts                TIMESTAMPTZ NOT NULL,
	session_id        TEXT,
	agent_id          TEXT,
	user_id_hash      TEXT,
	request_type      TEXT        NOT NULL,
	input_hash        TEXT,
	model             TEXT,
	security_decision TEXT        NOT NULL,
	security_reason   TEXT,
	violations        JSONB       NOT NULL DEFAULT '[]',
	scan_duration_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_usd          NUMERIC
)`

const recordColumns = 13

// maxInsertRows keeps one INSERT under the 65535 bind parameter limit.
var maxInsertRows = 65535 / recordColumns

// PostgresStore writes batches with one multi-row INSERT.
type PostgresStore struct {
	db database.Querier
}

func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating audit table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Write(ctx context.Context, record Record) error {
	return s.WriteBatch(ctx, []Record{record})
}

// WriteBatch inserts records in chunks of at most maxInsertRows rows.
func (s *PostgresStore) WriteBatch(ctx context.Context, records []Record) error {
	for chunk := range slices.Chunk(records, maxInsertRows) {
		sql, args, err := buildBatchInsert(chunk)
		if err != nil {
			return fmt.Errorf("building batch insert: %w", err)
		}
		if _, err := s.db.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("inserting audit records: %w", err)
		}
	}
	return nil
}

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(records []Record) (string, []any, error) {
	const cols = "(id, ts, session_id, agent_id, user_id_hash, request_type, input_hash, model, " +
		"security_decision, security_reason, violations, scan_duration_ms, cost_usd)"

	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*recordColumns)

	for i, r := range records {
		ph := make([]string, recordColumns)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*recordColumns+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")

		violations, err := json.Marshal(r.Violations)
		if err != nil {
			return "", nil, fmt.Errorf("marshaling violations: %w", err)
		}
		var cost any
		if r.CostUSD != nil {
			cost = r.CostUSD.String()
		}

		args = append(args,
			r.ID, r.Timestamp, nullable(r.SessionID), nullable(r.AgentID), nullable(r.UserIDHash),
			r.RequestType, nullable(r.InputHash), nullable(r.Model),
			string(r.SecurityDecision), nullable(r.SecurityReason), violations, r.ScanDurationMs, cost,
		)
	}

	sql := fmt.Sprintf("INSERT INTO aishield_audit %s VALUES %s", cols, strings.Join(placeholders, ", "))
	return sql, args, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

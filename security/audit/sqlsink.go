package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQL schema for the audit_entries table. Dialect-parameterized the
// same way the rate-limit store's schema is, since AUTO_INCREMENT vs.
// SERIAL vs. INTEGER PRIMARY KEY syntax differs across the three
// supported drivers even though the shape is identical.
const createAuditTableSQLTemplate = `
CREATE TABLE IF NOT EXISTS audit_entries (
    seq BIGINT NOT NULL PRIMARY KEY,
    timestamp VARCHAR(64) NOT NULL,
    agent_id VARCHAR(255) NOT NULL,
    action VARCHAR(64) NOT NULL,
    detail TEXT NOT NULL,
    outcome VARCHAR(64) NOT NULL,
    prev_hash CHAR(64) NOT NULL,
    hash CHAR(64) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_agent_id ON audit_entries(agent_id);
`

// SQLSink persists completed audit entries to a SQL backend for
// crash-forensics. It never participates in the in-memory chain's
// integrity: Log is always authoritative, this is best-effort.
// Supported dialects: "postgres", "mysql", "sqlite".
type SQLSink struct {
	db      *sql.DB
	dialect string
}

// NewSQLSink opens the schema (creating it if absent) and returns a
// Sink backed by db.
func NewSQLSink(db *sql.DB, dialect string) (*SQLSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLSink{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createAuditTableSQLTemplate); err != nil {
		return nil, fmt.Errorf("failed to create audit_entries table: %w", err)
	}
	return s, nil
}

func (s *SQLSink) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Write inserts e. A duplicate seq (re-delivery after a retry) is
// tolerated rather than erroring, since the in-memory log is the
// source of truth and the sink only needs best-effort persistence.
func (s *SQLSink) Write(e Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := fmt.Sprintf(
		`INSERT INTO audit_entries (seq, timestamp, agent_id, action, detail, outcome, prev_hash, hash)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7), s.placeholder(8),
	)
	_, err := s.db.ExecContext(ctx, query, e.Seq, e.Timestamp, e.AgentID, e.Action.String(), e.Detail, e.Outcome, e.PrevHash, e.Hash)
	if err != nil && !isDuplicateKeyErr(err) {
		return fmt.Errorf("audit sql sink: write seq %d: %w", e.Seq, err)
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	// Driver-specific duplicate-key detection is deliberately loose
	// here: the sink is best-effort, so any insert conflict on the
	// primary key is swallowed rather than matched against each
	// driver's specific error type.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unique constraint", "duplicate entry", "duplicate key value"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

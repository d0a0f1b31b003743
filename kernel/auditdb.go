package kernel

import (
	"database/sql"
	"fmt"

	"github.com/forgebound/kernel/config"
)

// openAuditDB opens the SQL connection backing the audit log's
// optional persistence sink. Driver registration (blank imports of
// go-sql-driver/mysql, lib/pq, mattn/go-sqlite3) lives in cmd/kerneld,
// the only place a concrete driver needs to be linked in.
func openAuditDB(cfg config.AuditSinkConfig) (*sql.DB, string, error) {
	driverName, dialect, err := driverFor(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}
	return db, dialect, nil
}

func driverFor(name string) (driverName, dialect string, err error) {
	switch name {
	case "postgres":
		return "postgres", "postgres", nil
	case "mysql":
		return "mysql", "mysql", nil
	case "sqlite":
		return "sqlite3", "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported audit sink driver: %s", name)
	}
}

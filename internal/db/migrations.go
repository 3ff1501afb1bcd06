package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// columnMigration adds a column that later versions of the requests table
// carry. Append new migrations at the end.
type columnMigration struct {
	table  string
	column string
	ddl    string
}

var migrations = []columnMigration{
	{"requests", "CREATED_VIA_SCAN", "INTEGER NOT NULL DEFAULT 0"},
	{"requests", "ASSIGNED_TECHNICIAN", "TEXT"},
}

// Migrate applies every column migration that has not been applied yet.
func Migrate(db *sql.DB) error {
	for i, m := range migrations {
		exists, err := hasColumn(db, m.table, m.column)
		if err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.ddl)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

package db

import (
	"database/sql"
	"fmt"
)

// schema creates every table. Request columns keep the upper-snake layout the
// dashboards and the legacy store share.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    login         TEXT NOT NULL,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('operator', 'supervisor')),
    password_hash TEXT NOT NULL DEFAULT '',
    sector        TEXT NOT NULL DEFAULT '',
    machine       TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_login_active
    ON users(login) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS requests (
    ID             TEXT PRIMARY KEY,
    REQUESTER_ID   TEXT NOT NULL,
    REQUESTER_NAME TEXT NOT NULL DEFAULT '',
    SECTOR         TEXT NOT NULL DEFAULT '',
    MACHINE        TEXT NOT NULL,
    DESCRIPTION    BLOB NOT NULL,
    STATUS         TEXT NOT NULL DEFAULT 'pending'
                   CHECK (STATUS IN ('pending', 'in_progress', 'done', 'cancelled')),
    PRIORITY       TEXT NOT NULL DEFAULT 'C',
    SERVICE_TYPE   TEXT NOT NULL DEFAULT 'mechanical',
    CREATED_AT     DATETIME NOT NULL,
    UPDATED_AT     DATETIME,
    NOTES          BLOB
);

CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(CREATED_AT);
CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(REQUESTER_ID);

CREATE TABLE IF NOT EXISTS request_photos (
    REQUEST_ID  TEXT PRIMARY KEY REFERENCES requests(ID) ON DELETE CASCADE,
    DATA        BLOB NOT NULL,
    MIME        TEXT NOT NULL,
    UPLOADED_AT DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist and
// brings older request tables up to date.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return Migrate(db)
}

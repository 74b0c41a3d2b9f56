package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    first_name    TEXT NOT NULL,
    last_name     TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'field_agent'
                  CHECK (role IN ('admin', 'warehouse', 'lab', 'field_agent', 'manager')),
    base          TEXT,
    phone         TEXT,
    active        INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sites (
    id         INTEGER PRIMARY KEY,
    code       TEXT NOT NULL UNIQUE,
    name       TEXT,
    location   TEXT,
    base       TEXT,
    latitude   REAL,
    longitude  REAL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS batches (
    ref         TEXT PRIMARY KEY,
    operator    TEXT NOT NULL,
    received_at DATETIME,
    unit_count  INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'in_delivery' CHECK (status IN ('in_delivery', 'received')),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS concentrators (
    serial           TEXT PRIMARY KEY,
    model            TEXT,
    operator         TEXT NOT NULL,
    state            TEXT NOT NULL DEFAULT 'in_delivery'
                     CHECK (state IN ('in_delivery', 'in_stock', 'installed', 'returned_to_manufacturer', 'scrapped')),
    location         TEXT,
    faulty           INTEGER NOT NULL DEFAULT 0,
    installed_at     DATETIME,
    assigned_at      DATETIME,
    state_changed_at DATETIME,
    comment          TEXT,
    photo            BLOB,
    photo_mime       TEXT,
    batch_ref        TEXT REFERENCES batches(ref),
    site_id          INTEGER REFERENCES sites(id),
    order_id         INTEGER,
    version          INTEGER NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_concentrators_state ON concentrators(state);
CREATE INDEX IF NOT EXISTS idx_concentrators_location ON concentrators(location);
CREATE INDEX IF NOT EXISTS idx_concentrators_operator ON concentrators(operator);

CREATE TABLE IF NOT EXISTS audit_events (
    id            INTEGER PRIMARY KEY,
    action        TEXT NOT NULL,
    occurred_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    prev_state    TEXT,
    new_state     TEXT,
    prev_location TEXT,
    new_location  TEXT,
    comment       TEXT,
    scanned       INTEGER NOT NULL DEFAULT 0,
    user_id       INTEGER NOT NULL REFERENCES users(id),
    serial        TEXT REFERENCES concentrators(serial),
    batch_ref     TEXT REFERENCES batches(ref),
    site_id       INTEGER REFERENCES sites(id)
);

CREATE INDEX IF NOT EXISTS idx_audit_events_serial ON audit_events(serial);
CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_occurred ON audit_events(occurred_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}

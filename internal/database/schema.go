package database

// schema contains all table definitions. Each statement is idempotent (CREATE IF NOT EXISTS).
const schema = `
CREATE TABLE IF NOT EXISTS tunnel_config (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    document   TEXT    NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);

CREATE TABLE IF NOT EXISTS revisions (
    id       TEXT    PRIMARY KEY,
    section  TEXT    NOT NULL,
    saved_at INTEGER NOT NULL,
    document TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_saved_at
    ON revisions (saved_at);

CREATE TABLE IF NOT EXISTS revision_warnings (
    revision_id TEXT    NOT NULL REFERENCES revisions(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    message     TEXT    NOT NULL,
    PRIMARY KEY (revision_id, position)
);
`

package db

// Schema is the DDL for the transformar session database.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id                TEXT PRIMARY KEY,
    source_type       TEXT NOT NULL,
    selected_template TEXT NOT NULL,
    file_label        TEXT,
    file_count        INTEGER DEFAULT 1,
    status            TEXT NOT NULL DEFAULT 'completed',
    error             TEXT,
    payload           TEXT,
    created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_type);
`

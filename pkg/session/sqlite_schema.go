package session

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the session database schema.
const Schema = `
-- Session records table
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    rule TEXT NOT NULL,
    state TEXT NOT NULL,

    -- Pending fact request while suspended
    pending_symbol TEXT,
    pending_type TEXT,
    pending_description TEXT,

    fact_requests INTEGER NOT NULL DEFAULT 0,

    -- Terminal outcome
    satisfied BOOLEAN,
    error TEXT,
    reason TEXT,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_sessions_rule ON sessions(rule);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

// UpsertSession inserts or updates a session record.
const UpsertSession = `
INSERT INTO sessions (
    id, rule, state,
    pending_symbol, pending_type, pending_description,
    fact_requests, satisfied, error, reason,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    state = excluded.state,
    pending_symbol = excluded.pending_symbol,
    pending_type = excluded.pending_type,
    pending_description = excluded.pending_description,
    fact_requests = excluded.fact_requests,
    satisfied = excluded.satisfied,
    error = excluded.error,
    reason = excluded.reason,
    updated_at = excluded.updated_at;
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
-- Audit records table
CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    kind TEXT NOT NULL,

    -- Decision fields
    tool TEXT,
    mode TEXT,
    base_mode TEXT,
    allowed BOOLEAN NOT NULL DEFAULT 0,
    reason TEXT,
    message TEXT,
    grant_active BOOLEAN NOT NULL DEFAULT 0,
    grant_remaining_ns INTEGER NOT NULL DEFAULT 0,
    args TEXT,

    -- Mode change fields
    from_mode TEXT,
    to_mode TEXT,
    cause TEXT,

    -- Grant event fields
    grant_event TEXT
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_records(kind);
CREATE INDEX IF NOT EXISTS idx_audit_tool ON audit_records(tool);
CREATE INDEX IF NOT EXISTS idx_audit_mode ON audit_records(mode);
CREATE INDEX IF NOT EXISTS idx_audit_allowed ON audit_records(allowed);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the latest schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

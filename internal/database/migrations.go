package database

// Migration represents a database migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// migrations contains all database migrations in order
var migrations = []Migration{
	{
		Version: "001_init",
		Up: `
-- Instance registry: one row per managed instance
CREATE TABLE instances (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    port INTEGER NOT NULL,
    flavour TEXT NOT NULL,
    version TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX idx_instances_port ON instances(port);

-- Append-only domain event history
CREATE TABLE events (
    sequence INTEGER PRIMARY KEY,
    kind TEXT NOT NULL,
    instance_id TEXT NOT NULL,
    instance_name TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    caused_by TEXT NOT NULL DEFAULT 'system',
    to_state TEXT NOT NULL DEFAULT '',
    line TEXT NOT NULL DEFAULT '',
    player TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    timestamp DATETIME NOT NULL
);

CREATE INDEX idx_events_instance ON events(instance_id);
CREATE INDEX idx_events_kind ON events(kind);
`,
		Down: `
DROP TABLE events;
DROP TABLE instances;
`,
	},
	{
		Version: "002_metrics",
		Up: `
-- Periodic resource samples of running instances
CREATE TABLE instance_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    instance_id TEXT NOT NULL,
    cpu_percent REAL,
    memory_bytes INTEGER,
    disk_io_bytes INTEGER,
    player_count INTEGER NOT NULL DEFAULT 0,
    sampled_at DATETIME NOT NULL
);

CREATE INDEX idx_metrics_instance ON instance_metrics(instance_id, sampled_at);
`,
		Down: `
DROP TABLE instance_metrics;
`,
	},
}

package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/yourusername/mc-instance-manager/internal/events"
)

// InstanceRecord is one row of the instance registry.
type InstanceRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Port      int       `json:"port"`
	Flavour   string    `json:"flavour"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertInstance registers an instance in the database.
func (db *DB) InsertInstance(rec InstanceRecord) error {
	_, err := db.Exec(`
		INSERT INTO instances (id, name, port, flavour, version)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Port, rec.Flavour, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to insert instance: %w", err)
	}
	return nil
}

// DeleteInstance removes an instance row. Its event history is kept.
func (db *DB) DeleteInstance(id string) error {
	if _, err := db.Exec(`DELETE FROM instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

// ListInstances returns all registered instances.
func (db *DB) ListInstances() ([]InstanceRecord, error) {
	rows, err := db.Query(`
		SELECT id, name, port, flavour, version, created_at
		FROM instances ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var out []InstanceRecord
	for rows.Next() {
		var rec InstanceRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Port, &rec.Flavour, &rec.Version, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan instance row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordEvent appends one domain event to the history.
func (db *DB) RecordEvent(ev events.Event) error {
	_, err := db.Exec(`
		INSERT INTO events (sequence, kind, instance_id, instance_name, detail, caused_by, to_state, line, player, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Sequence, string(ev.Kind), ev.InstanceID, ev.InstanceName, ev.Detail,
		ev.CausedBy.String(), ev.To, ev.Line, ev.Player, ev.Message, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events for an instance, newest first.
func (db *DB) ListEvents(instanceID string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT sequence, kind, instance_id, instance_name, detail, to_state, line, player, message, timestamp
		FROM events WHERE instance_id = ?
		ORDER BY sequence DESC LIMIT ?
	`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var ev events.Event
		var kind string
		if err := rows.Scan(&ev.Sequence, &kind, &ev.InstanceID, &ev.InstanceName,
			&ev.Detail, &ev.To, &ev.Line, &ev.Player, &ev.Message, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.Kind = events.Kind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MetricSample is one stored resource sample.
type MetricSample struct {
	InstanceID  string    `json:"instance_id"`
	CPUPercent  *float64  `json:"cpu_percent,omitempty"`
	MemoryBytes *uint64   `json:"memory_bytes,omitempty"`
	DiskIOBytes *uint64   `json:"disk_io_bytes,omitempty"`
	PlayerCount int       `json:"player_count"`
	SampledAt   time.Time `json:"sampled_at"`
}

// RecordMetric appends one resource sample.
func (db *DB) RecordMetric(s MetricSample) error {
	_, err := db.Exec(`
		INSERT INTO instance_metrics (instance_id, cpu_percent, memory_bytes, disk_io_bytes, player_count, sampled_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.InstanceID, s.CPUPercent, s.MemoryBytes, s.DiskIOBytes, s.PlayerCount, s.SampledAt)
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}
	return nil
}

// ListMetrics returns the most recent samples for an instance, newest first.
func (db *DB) ListMetrics(instanceID string, limit int) ([]MetricSample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT instance_id, cpu_percent, memory_bytes, disk_io_bytes, player_count, sampled_at
		FROM instance_metrics WHERE instance_id = ?
		ORDER BY sampled_at DESC, id DESC LIMIT ?
	`, instanceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricSample
	for rows.Next() {
		var s MetricSample
		if err := rows.Scan(&s.InstanceID, &s.CPUPercent, &s.MemoryBytes, &s.DiskIOBytes, &s.PlayerCount, &s.SampledAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneMetrics deletes samples older than the cutoff.
func (db *DB) PruneMetrics(cutoff time.Time) error {
	if _, err := db.Exec(`DELETE FROM instance_metrics WHERE sampled_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to prune metrics: %w", err)
	}
	return nil
}

// RecordFromBus subscribes to the bus and appends every event until the bus
// closes. Run it in its own goroutine; insert failures are logged, never
// propagated back to publishers.
func (db *DB) RecordFromBus(bus *events.Bus) {
	ch, cancel := bus.Subscribe(1024)
	defer cancel()

	for ev := range ch {
		if err := db.RecordEvent(ev); err != nil {
			slog.Error("failed to persist event", "sequence", ev.Sequence, "error", err)
		}
	}
}

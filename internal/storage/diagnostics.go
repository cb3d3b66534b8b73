package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DiagnosticDump is one captured container diagnostic snapshot (the
// callers store the old container snapshot, the attempted recreate
// spec, and the error text of a failed recreate), kept for later
// inspection.
type DiagnosticDump struct {
	ID            int64
	ContainerName string
	CapturedAt    time.Time
	Payload       json.RawMessage
}

// SaveDiagnosticDump persists a diagnostic payload for containerName.
func (s *Store) SaveDiagnosticDump(ctx context.Context, containerName string, payload json.RawMessage, capturedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diagnostic_dumps (container_name, captured_at, payload_json) VALUES (?, ?, ?)`,
		containerName, capturedAt, string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting diagnostic dump for %s: %w", containerName, err)
	}
	return nil
}

// GetDiagnosticDumps returns the most recent dumps for containerName,
// newest first, bounded by limit (0 means no limit).
func (s *Store) GetDiagnosticDumps(ctx context.Context, containerName string, limit int) ([]DiagnosticDump, error) {
	query := `SELECT id, container_name, captured_at, payload_json FROM diagnostic_dumps
		WHERE container_name = ? ORDER BY captured_at DESC`
	args := []any{containerName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostic dumps for %s: %w", containerName, err)
	}
	defer rows.Close()

	var out []DiagnosticDump
	for rows.Next() {
		var d DiagnosticDump
		var payload string
		if err := rows.Scan(&d.ID, &d.ContainerName, &d.CapturedAt, &payload); err != nil {
			return nil, fmt.Errorf("scanning diagnostic dump row: %w", err)
		}
		d.Payload = json.RawMessage(payload)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating diagnostic dump rows: %w", err)
	}
	return out, nil
}

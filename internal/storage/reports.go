package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/halvorsen/cuengine/internal/report"
)

// SaveRunReport persists one cycle's RunReport in full, including its
// per-container outcomes, errors, and warnings.
func (s *Store) SaveRunReport(ctx context.Context, r report.RunReport) error {
	updatesJSON, err := json.Marshal(r.Updates)
	if err != nil {
		return fmt.Errorf("marshaling updates: %w", err)
	}
	errorsJSON, err := json.Marshal(r.Errors)
	if err != nil {
		return fmt.Errorf("marshaling errors: %w", err)
	}
	warningsJSON, err := json.Marshal(r.Warnings)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO run_reports (
			run_id, engine_version, started_at, ended_at,
			containers_checked, containers_updated, containers_failed, containers_skipped,
			updates_json, errors_json, warnings_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.EngineVersion, r.StartedAt, r.EndedAt,
		r.ContainersChecked, r.ContainersUpdated, r.ContainersFailed, r.ContainersSkipped,
		string(updatesJSON), string(errorsJSON), string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run report %s: %w", r.RunID, err)
	}
	return nil
}

// GetRunReports returns the most recent run reports, newest first,
// bounded by limit (0 means no limit).
func (s *Store) GetRunReports(ctx context.Context, limit int) ([]report.RunReport, error) {
	query := `SELECT run_id, engine_version, started_at, ended_at,
		containers_checked, containers_updated, containers_failed, containers_skipped,
		updates_json, errors_json, warnings_json
		FROM run_reports ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run reports: %w", err)
	}
	defer rows.Close()

	var out []report.RunReport
	for rows.Next() {
		var r report.RunReport
		var updatesJSON, errorsJSON, warningsJSON string
		if err := rows.Scan(
			&r.RunID, &r.EngineVersion, &r.StartedAt, &r.EndedAt,
			&r.ContainersChecked, &r.ContainersUpdated, &r.ContainersFailed, &r.ContainersSkipped,
			&updatesJSON, &errorsJSON, &warningsJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning run report row: %w", err)
		}
		r.Duration = r.EndedAt.Sub(r.StartedAt)
		if err := json.Unmarshal([]byte(updatesJSON), &r.Updates); err != nil {
			return nil, fmt.Errorf("unmarshaling updates for run %s: %w", r.RunID, err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &r.Errors); err != nil {
			return nil, fmt.Errorf("unmarshaling errors for run %s: %w", r.RunID, err)
		}
		if err := json.Unmarshal([]byte(warningsJSON), &r.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshaling warnings for run %s: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run report rows: %w", err)
	}
	return out, nil
}

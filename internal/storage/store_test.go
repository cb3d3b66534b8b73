package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halvorsen/cuengine/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cuengine.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRunReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := report.RunReport{
		RunID:             "run-1",
		EngineVersion:     "dev",
		StartedAt:         time.Unix(1_700_000_000, 0).UTC(),
		EndedAt:           time.Unix(1_700_000_060, 0).UTC(),
		ContainersChecked: 3,
		ContainersUpdated: 1,
		Updates: []report.Outcome{
			{Container: "app", From: "1.0.0", To: "1.1.0", Category: "minor", Status: "succeeded"},
		},
	}
	require.NoError(t, s.SaveRunReport(ctx, r))

	got, err := s.GetRunReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "run-1", got[0].RunID)
	require.Len(t, got[0].Updates, 1)
	require.Equal(t, "1.1.0", got[0].Updates[0].To)
}

func TestSaveAndGetDiagnosticDumps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload, _ := json.Marshal(map[string]string{"status": "unhealthy"})
	now := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, s.SaveDiagnosticDump(ctx, "app", payload, now))
	require.NoError(t, s.SaveDiagnosticDump(ctx, "app", payload, now.Add(time.Hour)))
	require.NoError(t, s.SaveDiagnosticDump(ctx, "other", payload, now))

	dumps, err := s.GetDiagnosticDumps(ctx, "app", 0)
	require.NoError(t, err)
	require.Len(t, dumps, 2)
	require.True(t, dumps[0].CapturedAt.After(dumps[1].CapturedAt), "expected dumps ordered newest first")
}

func TestClearAllRemovesHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRunReport(ctx, report.RunReport{RunID: "run-1", StartedAt: time.Now(), EndedAt: time.Now()}))
	require.NoError(t, s.SaveDiagnosticDump(ctx, "app", json.RawMessage(`{}`), time.Now()))

	require.NoError(t, s.ClearAll())

	reports, err := s.GetRunReports(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, reports)

	dumps, err := s.GetDiagnosticDumps(ctx, "app", 0)
	require.NoError(t, err)
	require.Empty(t, dumps)
}

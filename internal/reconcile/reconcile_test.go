package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dwagent/internal/adapter"
	"dwagent/internal/repo"
)

func openTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRunFlagsMissingSheetRow(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: "doc-1", Status: repo.StatusApproved,
		CreatedAt: 1, UpdatedAt: 1,
	}))

	rec, err := New(Config{Repo: r, Adapter: mem, DryRun: true, Now: func() time.Time { return time.UnixMilli(2) }})
	require.NoError(t, err)

	result, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	require.Equal(t, AnomalyMissingInSheet, result.Anomalies[0].Type)
}

func TestRunFlagsStatusMismatch(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: "doc-1", Status: repo.StatusApproved,
		CreatedAt: 1, UpdatedAt: 1,
	}))
	require.NoError(t, mem.AppendCommandRow(context.Background(), "doc-1", "cmd-1", "DW PAYOUT 1 USDC TO 0x1", repo.StatusExecuted, "", "", ""))

	rec, err := New(Config{Repo: r, Adapter: mem, DryRun: true, Now: func() time.Time { return time.UnixMilli(2) }})
	require.NoError(t, err)

	result, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	require.Equal(t, AnomalyStatusMismatch, result.Anomalies[0].Type)
}

func TestRunFlagsStuckPendingApproval(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: "doc-1", Status: repo.StatusPendingApproval,
		CreatedAt: 0, UpdatedAt: 0,
	}))
	require.NoError(t, mem.AppendCommandRow(context.Background(), "doc-1", "cmd-1", "DW PAYOUT 1 USDC TO 0x1", repo.StatusPendingApproval, "", "", ""))

	later := time.UnixMilli(0).Add(48 * time.Hour)
	rec, err := New(Config{Repo: r, Adapter: mem, DryRun: true, Now: func() time.Time { return later }})
	require.NoError(t, err)

	result, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	require.Equal(t, AnomalyStuckPending, result.Anomalies[0].Type)
}

func TestRunCleanWhenAligned(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: "doc-1", Status: repo.StatusExecuted,
		CreatedAt: 1, UpdatedAt: 1,
	}))
	require.NoError(t, mem.AppendCommandRow(context.Background(), "doc-1", "cmd-1", "DW PAYOUT 1 USDC TO 0x1", repo.StatusExecuted, "", "", ""))

	rec, err := New(Config{Repo: r, Adapter: mem, DryRun: true, Now: func() time.Time { return time.UnixMilli(2) }})
	require.NoError(t, err)

	result, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Anomalies)
	require.Len(t, result.Rows, 1)
}

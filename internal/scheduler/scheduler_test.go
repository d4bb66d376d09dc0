package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dwagent/internal/policy"
	"dwagent/internal/repo"
)

func openTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTickFiresDueScheduleExactlyOnce(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.CreateSchedule(repo.Schedule{
		ID: "sched-1", DocID: docID, InnerCommand: "DW PAYOUT 1 USDC TO 0x0000000000000000000000000000000000000001",
		IntervalHours: 1, NextRunAt: 0, Status: repo.ScheduleActive,
	}))

	fixedNow := time.UnixMilli(1000)
	idCounter := 0
	tick := &Tick{
		Repo: r,
		Now:  func() time.Time { return fixedNow },
		NewID: func() string {
			idCounter++
			return "cmd-fixed"
		},
		Policy: func(ctx context.Context, docID string) (policy.Policy, policy.Context, error) {
			noApproval := false
			return policy.Policy{RequireApproval: &noApproval}, policy.Context{}, nil
		},
	}

	require.NoError(t, tick.Run(context.Background()))
	require.NoError(t, tick.Run(context.Background()))

	rows, err := r.ListCommandsByStatus(docID, repo.StatusApproved)
	require.NoError(t, err)
	require.Len(t, rows, 1, "schedule must fire exactly once per due window")
}

package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestQuorumEscalation(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.UpsertSigner(docID, "signer-a", 1))
	require.NoError(t, r.UpsertSigner(docID, "signer-b", 1))
	require.NoError(t, r.SetQuorum(docID, 2))

	require.NoError(t, r.AppendCommand(CommandRow{ID: "cmd-1", DocID: docID, Status: StatusPendingApproval, CreatedAt: 1, UpdatedAt: 1}))

	_, err := r.RecordApproval(docID, "cmd-1", "signer-a", DecisionApprove, 1)
	require.NoError(t, err)
	status, promoted, err := r.PromoteIfQuorum(docID, "cmd-1", 2, 2)
	require.NoError(t, err)
	require.False(t, promoted)
	require.Equal(t, StatusPendingApproval, status)

	_, err = r.RecordApproval(docID, "cmd-1", "signer-b", DecisionApprove, 2)
	require.NoError(t, err)
	status, promoted, err = r.PromoteIfQuorum(docID, "cmd-1", 2, 3)
	require.NoError(t, err)
	require.True(t, promoted)
	require.Equal(t, StatusApproved, status)
}

func TestApprovalIdempotency(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.UpsertSigner(docID, "signer-a", 1))
	require.NoError(t, r.AppendCommand(CommandRow{ID: "cmd-1", DocID: docID, Status: StatusPendingApproval, CreatedAt: 1, UpdatedAt: 1}))

	first, err := r.RecordApproval(docID, "cmd-1", "signer-a", DecisionApprove, 1)
	require.NoError(t, err)
	second, err := r.RecordApproval(docID, "cmd-1", "signer-a", DecisionApprove, 2)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(1), second.ApproveWeight)
}

func TestCompareAndSwapStatus(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.AppendCommand(CommandRow{ID: "cmd-1", DocID: docID, Status: StatusApproved, CreatedAt: 1, UpdatedAt: 1}))

	won, err := r.CompareAndSwapStatus(docID, "cmd-1", StatusApproved, StatusExecuting, 2)
	require.NoError(t, err)
	require.True(t, won)

	wonAgain, err := r.CompareAndSwapStatus(docID, "cmd-1", StatusApproved, StatusExecuting, 3)
	require.NoError(t, err)
	require.False(t, wonAgain)
}

func TestRejectionClearsApprovals(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.UpsertSigner(docID, "signer-a", 1))
	require.NoError(t, r.UpsertSigner(docID, "signer-b", 1))
	require.NoError(t, r.AppendCommand(CommandRow{ID: "cmd-1", DocID: docID, Status: StatusPendingApproval, CreatedAt: 1, UpdatedAt: 1}))

	_, err := r.RecordApproval(docID, "cmd-1", "signer-a", DecisionReject, 1)
	require.NoError(t, err)
	status, promoted, err := r.PromoteIfQuorum(docID, "cmd-1", 2, 2)
	require.NoError(t, err)
	require.True(t, promoted)
	require.Equal(t, StatusRejected, status)

	row, err := r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, row.Status)

	// The rejecting signer's row is gone, so a new decision is recorded afresh.
	tally, err := r.RecordApproval(docID, "cmd-1", "signer-a", DecisionApprove, 3)
	require.NoError(t, err)
	require.Equal(t, Tally{ApproveWeight: 1}, tally)
}

func TestScheduleReservation(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.CreateSchedule(Schedule{ID: "sched-1", DocID: docID, InnerCommand: "PAYOUT 1 USDC TO 0x01", IntervalHours: 1, NextRunAt: 0, Status: ScheduleActive}))

	due, err := r.DueSchedules(100)
	require.NoError(t, err)
	require.Len(t, due, 1)

	won, err := r.ReserveDueSchedule("sched-1", 0, 3600000, 100)
	require.NoError(t, err)
	require.True(t, won)

	sched, err := r.GetSchedule(docID, "sched-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), sched.TotalRuns)
	require.Equal(t, int64(3600000), sched.NextRunAt)

	wonAgain, err := r.ReserveDueSchedule("sched-1", 0, 7200000, 200)
	require.NoError(t, err)
	require.False(t, wonAgain)
}

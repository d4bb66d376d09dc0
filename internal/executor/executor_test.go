package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dwagent/internal/adapter"
	"dwagent/internal/chainclient"
	"dwagent/internal/money"
	"dwagent/internal/repo"
)

type fakeCustodial struct {
	failTimes int
	calls     int
}

func (f *fakeCustodial) EnsureWallet(ctx context.Context, docID string) (string, string, error) {
	return "wallet-1", "0xaddr", nil
}

func (f *fakeCustodial) Payout(ctx context.Context, walletID, to string, amount money.Amount) (chainclient.PayoutResult, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return chainclient.PayoutResult{}, errors.New("rpc timeout")
	}
	return chainclient.PayoutResult{ProviderTxID: "tx-1", State: "SETTLED"}, nil
}

func (f *fakeCustodial) Bridge(ctx context.Context, walletID, destChainTag, to string, amount money.Amount) (chainclient.PayoutResult, error) {
	return chainclient.PayoutResult{}, nil
}

func openTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestExecutorSucceedsOnApprovedPayout(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))

	custodial := &fakeCustodial{}
	mem := adapter.NewMemory()
	mem.Track(docID, "Treasury A")
	e := &Executor{Repo: r, Custodial: custodial, Adapter: mem, Now: func() time.Time { return time.UnixMilli(2) }}

	require.NoError(t, e.Tick(context.Background()))

	row, err := r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuted, row.Status)
	require.Equal(t, "tx-1", row.ResultText)
}

func TestExecutorRetriesTransientThenSucceeds(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))

	custodial := &fakeCustodial{failTimes: 2}
	now := time.UnixMilli(1000)
	e := &Executor{Repo: r, Custodial: custodial, Now: func() time.Time { return now }}

	require.NoError(t, e.Tick(context.Background()))
	row, err := r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuting, row.Status, "first transient failure leaves status EXECUTING for retry")

	now = now.Add(time.Minute)
	require.NoError(t, e.Tick(context.Background()))
	row, err = r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuting, row.Status)

	now = now.Add(time.Minute)
	require.NoError(t, e.Tick(context.Background()))
	row, err = r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuted, row.Status)
}

func TestExecutorFailsPermanentlyWithoutClient(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))

	e := &Executor{Repo: r, Now: func() time.Time { return time.UnixMilli(2) }}
	require.NoError(t, e.Tick(context.Background()))

	row, err := r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusFailed, row.Status)
	require.Contains(t, row.ErrorText, "no custodial stable client configured")
}

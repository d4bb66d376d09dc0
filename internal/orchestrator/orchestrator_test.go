package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dwagent/internal/adapter"
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

func autoApprovePolicy(ctx context.Context, docID string) (policy.Policy, policy.Context, error) {
	noApproval := false
	return policy.Policy{RequireApproval: &noApproval}, policy.Context{}, nil
}

func TestDiscoveryTickUpsertsDocuments(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	mem.Track("doc-1", "Treasury A")

	o := &Orchestrator{Repo: r, Adapter: mem, Now: func() time.Time { return time.UnixMilli(1) }}
	require.NoError(t, o.discoveryTick(context.Background()))

	doc, err := r.GetDocument("doc-1")
	require.NoError(t, err)
	require.Equal(t, "Treasury A", doc.DisplayName)
}

func TestPollTickMaterializesNewCommandRow(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	mem.Track("doc-1", "Treasury A")
	require.NoError(t, r.UpsertDocument(repo.Document{DocID: "doc-1", DisplayName: "Treasury A", CreatedAt: 1}))
	require.NoError(t, mem.AppendCommandRow(context.Background(), "doc-1", "cmd-1", "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001", "", "", "", ""))

	o := &Orchestrator{
		Repo: r, Adapter: mem, Policy: autoApprovePolicy,
		docHashes: make(map[string]string), failures: make(map[string]int),
		Now: func() time.Time { return time.UnixMilli(2) },
	}

	require.NoError(t, o.pollTick(context.Background()))

	row, err := r.GetCommand("doc-1", "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusApproved, row.Status)

	tables, err := mem.LoadTables(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusApproved, tables.Commands[0].Status)
}

func TestPollTickSkipsUnchangedDocument(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.UpsertDocument(repo.Document{DocID: "doc-1", DisplayName: "Treasury A", CreatedAt: 1}))

	o := &Orchestrator{
		Repo: r, Adapter: mem, Policy: autoApprovePolicy,
		docHashes: make(map[string]string), failures: make(map[string]int),
		Now: func() time.Time { return time.UnixMilli(2) },
	}

	require.NoError(t, o.pollTick(context.Background()))
	require.NoError(t, o.pollTick(context.Background()))

	ids, err := r.ExistingCommandIDs("doc-1")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestChatTickRepliesAndExecutesCommand(t *testing.T) {
	r := openTestRepo(t)
	mem := adapter.NewMemory()
	require.NoError(t, r.UpsertDocument(repo.Document{DocID: "doc-1", DisplayName: "Treasury A", CreatedAt: 1}))
	mem.SeedChat("doc-1", "!execute DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001")

	o := &Orchestrator{
		Repo: r, Adapter: mem, Policy: autoApprovePolicy,
		docHashes: make(map[string]string), failures: make(map[string]int),
		Now: func() time.Time { return time.UnixMilli(3) },
	}

	require.NoError(t, o.chatTick(context.Background()))

	tables, err := mem.LoadTables(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, tables.Chat[0].Agent)
	require.Len(t, tables.Commands, 1)
	require.Equal(t, repo.StatusApproved, tables.Commands[0].Status)
}

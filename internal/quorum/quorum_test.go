package quorum

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dwagent/internal/repo"
)

func openTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSubmitPromotesOnQuorum(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.UpsertSigner(docID, "signer-a", 1))
	require.NoError(t, r.UpsertSigner(docID, "signer-b", 1))
	require.NoError(t, r.SetQuorum(docID, 2))
	require.NoError(t, r.AppendCommand(repo.CommandRow{ID: "cmd-1", DocID: docID, Status: repo.StatusPendingApproval, CreatedAt: 1, UpdatedAt: 1}))

	out, err := Submit(r, docID, "cmd-1", "signer-a", repo.DecisionApprove, 1)
	require.NoError(t, err)
	require.False(t, out.Promoted)
	require.Equal(t, int64(1), out.Approvals)

	out, err = Submit(r, docID, "cmd-1", "signer-b", repo.DecisionApprove, 2)
	require.NoError(t, err)
	require.True(t, out.Promoted)
	require.Equal(t, repo.StatusApproved, out.Status)
}

func TestURLMinterMint(t *testing.T) {
	m := URLMinter{BaseURL: "https://agent.example.com/"}
	require.Equal(t, "https://agent.example.com/approve/doc-1/cmd-1", m.Mint("doc-1", "cmd-1"))
}

func TestNewApprovalTokenUnique(t *testing.T) {
	a, err := NewApprovalToken()
	require.NoError(t, err)
	b, err := NewApprovalToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 48)
}

package executor

import (
	"context"
	"testing"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"dwagent/internal/chainclient"
	"dwagent/internal/keyvault"
	"dwagent/internal/money"
	"dwagent/internal/repo"
)

type fakeStateChannel struct {
	submitVersion int64
	submitCalls   int
	lastSigs      [][]byte
}

func (f *fakeStateChannel) OpenSession(ctx context.Context, signers []string, allocations map[string]money.Amount) (string, error) {
	return "session-1", nil
}

func (f *fakeStateChannel) SubmitAppState(ctx context.Context, sessionID string, version int64, intent string, payload []byte, quorumSigs [][]byte) (int64, error) {
	f.submitCalls++
	f.lastSigs = quorumSigs
	f.submitVersion = version + 1
	return f.submitVersion, nil
}

func (f *fakeStateChannel) SendOffChain(ctx context.Context, sessionID, to string, amount money.Amount) (int64, error) {
	return f.submitVersion, nil
}

func (f *fakeStateChannel) CloseSession(ctx context.Context, sessionID string) (string, error) {
	return "settlement-1", nil
}

func (f *fakeStateChannel) AuthRequest(ctx context.Context, sessionID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeStateChannel) AuthVerify(ctx context.Context, sessionID string, response []byte) (bool, error) {
	return true, nil
}

var _ chainclient.StateChannelClient = (*fakeStateChannel)(nil)

func newTestVault(t *testing.T) *keyvault.Vault {
	t.Helper()
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	v, err := keyvault.New(key[:])
	require.NoError(t, err)
	return v
}

func TestExecutorPassesThroughWithoutBoundSession(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))

	custodial := &fakeCustodial{}
	e := &Executor{Repo: r, Custodial: custodial, Now: func() time.Time { return time.UnixMilli(2) }}

	require.NoError(t, e.Tick(context.Background()))

	row, err := r.GetCommand(docID, "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuted, row.Status, "no bound session leaves execution ungated")
}

func TestExecutorAbortsOnMissingSessionKey(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	cmdID := "cmd-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: cmdID, DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))
	require.NoError(t, r.UpsertStateChannelSession(repo.StateChannelSession{
		DocID: docID, SessionID: "session-1", Version: 3, Status: repo.SessionStatusActive,
	}))
	_, err := r.RecordApproval(docID, cmdID, "0xsigner1", repo.DecisionApprove, 1)
	require.NoError(t, err)

	custodial := &fakeCustodial{}
	sc := &fakeStateChannel{}
	e := &Executor{
		Repo: r, Custodial: custodial, StateChannel: sc, Vault: newTestVault(t),
		Now: func() time.Time { return time.UnixMilli(2) },
	}

	require.NoError(t, e.Tick(context.Background()))

	row, err := r.GetCommand(docID, cmdID)
	require.NoError(t, err)
	require.Equal(t, repo.StatusFailed, row.Status)
	require.Contains(t, row.ErrorText, "session key expired or missing")
	require.Equal(t, 0, sc.submitCalls, "SubmitAppState must never be reached without a live attestation")

	sess, err := r.GetStateChannelSession(docID)
	require.NoError(t, err)
	require.Equal(t, int64(3), sess.Version, "version must not advance on an aborted gate")
}

func TestExecutorSubmitsAppStateBeforeDispatch(t *testing.T) {
	r := openTestRepo(t)
	docID := "doc-1"
	cmdID := "cmd-1"
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: cmdID, DocID: docID, RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusApproved, CreatedAt: 1, UpdatedAt: 1,
	}))
	require.NoError(t, r.UpsertStateChannelSession(repo.StateChannelSession{
		DocID: docID, SessionID: "session-1", Version: 3, Status: repo.SessionStatusActive,
	}))
	_, err := r.RecordApproval(docID, cmdID, "0xsigner1", repo.DecisionApprove, 1)
	require.NoError(t, err)

	vault := newTestVault(t)
	priv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	ciphertext, err := vault.Seal(gethcrypto.FromECDSA(priv))
	require.NoError(t, err)
	require.NoError(t, r.UpsertSessionKey(repo.SessionKey{
		DocID: docID, SignerAddress: "0xsigner1",
		EncryptedPrivate: []byte(ciphertext), ExpiresAt: time.UnixMilli(2).Add(time.Hour).UnixMilli(),
	}))

	custodial := &fakeCustodial{}
	sc := &fakeStateChannel{}
	e := &Executor{
		Repo: r, Custodial: custodial, StateChannel: sc, Vault: vault,
		Now: func() time.Time { return time.UnixMilli(2) },
	}

	require.NoError(t, e.Tick(context.Background()))

	row, err := r.GetCommand(docID, cmdID)
	require.NoError(t, err)
	require.Equal(t, repo.StatusExecuted, row.Status)
	require.Equal(t, 1, sc.submitCalls)
	require.Len(t, sc.lastSigs, 1)

	sess, err := r.GetStateChannelSession(docID)
	require.NoError(t, err)
	require.Equal(t, int64(4), sess.Version, "session version advances to the value SubmitAppState returned")
}

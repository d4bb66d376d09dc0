package approvalhttp

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
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

func newTestServer(t *testing.T, r *repo.Repository) *Server {
	t.Helper()
	return New(Config{
		Repo:          r,
		SessionSecret: []byte("test-session-secret"),
		SessionTTL:    time.Minute,
		Now:           time.Now,
	})
}

func TestJoinAndDecisionFlow(t *testing.T) {
	r := openTestRepo(t)
	priv, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	address := gethcrypto.PubkeyToAddress(priv.PublicKey).Hex()

	require.NoError(t, r.UpsertDocument(repo.Document{DocID: "doc-1", DisplayName: "Treasury A"}))
	require.NoError(t, r.UpsertSigner("doc-1", address, 1))
	require.NoError(t, r.SetQuorum("doc-1", 1))
	require.NoError(t, r.AppendCommand(repo.CommandRow{
		ID: "cmd-1", DocID: "doc-1", RawText: "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		Status: repo.StatusPendingApproval,
	}))

	srv := newTestServer(t, r)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	startResp, err := http.Post(ts.URL+"/approve/doc-1/cmd-1/start-join", "application/json", nil)
	require.NoError(t, err)
	defer startResp.Body.Close()
	require.Equal(t, http.StatusOK, startResp.StatusCode)

	var start startJoinResponse
	require.NoError(t, json.NewDecoder(startResp.Body).Decode(&start))
	require.NotEmpty(t, start.Token)
	require.NotEmpty(t, start.Message)

	prefixed := []byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(start.Message)) + start.Message)
	digest := gethcrypto.Keccak256(prefixed)
	sig, err := gethcrypto.Sign(digest, priv)
	require.NoError(t, err)

	finishBody, _ := json.Marshal(finishJoinRequest{
		Token:     start.Token,
		Signature: hex.EncodeToString(sig),
	})
	finishResp, err := http.Post(ts.URL+"/approve/doc-1/cmd-1/finish-join", "application/json", bytes.NewReader(finishBody))
	require.NoError(t, err)
	defer finishResp.Body.Close()
	require.Equal(t, http.StatusOK, finishResp.StatusCode)

	var cookie *http.Cookie
	for _, c := range finishResp.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	decisionBody, _ := json.Marshal(decisionRequest{Decision: "APPROVE"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/approve/doc-1/cmd-1/decision", bytes.NewReader(decisionBody))
	require.NoError(t, err)
	req.AddCookie(cookie)
	decResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer decResp.Body.Close()
	require.Equal(t, http.StatusOK, decResp.StatusCode)

	var decision decisionResponse
	require.NoError(t, json.NewDecoder(decResp.Body).Decode(&decision))
	require.Equal(t, repo.StatusApproved, decision.Status)
	require.True(t, decision.Promoted)

	row, err := r.GetCommand("doc-1", "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusApproved, row.Status)
}

func TestDecisionRequiresSession(t *testing.T) {
	r := openTestRepo(t)
	srv := newTestServer(t, r)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(decisionRequest{Decision: "APPROVE"})
	resp, err := http.Post(ts.URL+"/approve/doc-1/cmd-1/decision", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStartJoinRejectsNonPendingCommand(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.AppendCommand(repo.CommandRow{ID: "cmd-1", DocID: "doc-1", Status: repo.StatusExecuted}))
	srv := newTestServer(t, r)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/approve/doc-1/cmd-1/start-join", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

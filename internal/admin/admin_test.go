package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dwagent/internal/executor"
	"dwagent/internal/repo"
)

func openTestRepo(t *testing.T) *repo.Repository {
	t.Helper()
	r, err := repo.Open(repo.Config{Driver: repo.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestPauseResumeRequiresAuth(t *testing.T) {
	r := openTestRepo(t)
	exec := &executor.Executor{Repo: r}
	auth, err := NewAuthenticator("secret-token")
	require.NoError(t, err)
	srv := NewServer(r, exec, auth)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/pause", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.False(t, exec.Paused())
}

func TestPauseResumeFlow(t *testing.T) {
	r := openTestRepo(t)
	exec := &executor.Executor{Repo: r}
	auth, err := NewAuthenticator("secret-token")
	require.NoError(t, err)
	srv := NewServer(r, exec, auth)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	doReq := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer secret-token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := doReq("/pause")
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.True(t, exec.Paused())

	resp2 := doReq("/resume")
	defer resp2.Body.Close()
	require.Equal(t, http.StatusNoContent, resp2.StatusCode)
	require.False(t, exec.Paused())
}

func TestAbortMovesApprovedCommandToRejected(t *testing.T) {
	r := openTestRepo(t)
	require.NoError(t, r.AppendCommand(repo.CommandRow{ID: "cmd-1", DocID: "doc-1", Status: repo.StatusApproved}))
	exec := &executor.Executor{Repo: r}
	auth, err := NewAuthenticator("secret-token")
	require.NoError(t, err)
	srv := NewServer(r, exec, auth)
	srv.now = func() time.Time { return time.UnixMilli(5) }
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body, _ := json.Marshal(abortRequest{DocID: "doc-1", CmdID: "cmd-1", Reason: "test abort"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/abort", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	row, err := r.GetCommand("doc-1", "cmd-1")
	require.NoError(t, err)
	require.Equal(t, repo.StatusRejected, row.Status)
	require.Equal(t, "test abort", row.ErrorText)
}

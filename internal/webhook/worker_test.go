package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticSource struct {
	subs []Subscription
}

func (s staticSource) SubscriptionsFor(ctx context.Context, docID string) ([]Subscription, error) {
	return s.subs, nil
}

func TestWorkerDeliversSignedPayload(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte
	var gotSig string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotSig = r.Header.Get("X-Webhook-Signature")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	src := staticSource{subs: []Subscription{{ID: "sub-1", URL: ts.URL, Secret: "sekrit", RateLimit: 10, Active: true}}}
	w := NewWorker(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Notify(ctx, Event{DocID: "doc-1", CmdID: "cmd-1", Status: "EXECUTED", ResultText: "ok", OccurredAt: time.Unix(0, 0)})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotBody) > 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, "doc-1", payload["docId"])
	require.Equal(t, "cmd-1", payload["cmdId"])

	mac := hmac.New(sha256.New, []byte("sekrit"))
	mac.Write(gotBody)
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSig)
}

func TestWorkerSkipsInactiveSubscriptions(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	src := staticSource{subs: []Subscription{{ID: "sub-1", URL: ts.URL, Secret: "x", RateLimit: 10, Active: false}}}
	w := NewWorker(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Notify(ctx, Event{DocID: "doc-1", CmdID: "cmd-1", Status: "EXECUTED"})
	time.Sleep(50 * time.Millisecond)
	require.False(t, called)
}

func TestBackoffDurationDoublesAndCaps(t *testing.T) {
	require.Equal(t, time.Second, backoffDuration(1))
	require.Equal(t, 2*time.Second, backoffDuration(2))
	require.Equal(t, 4*time.Second, backoffDuration(3))
	require.Equal(t, 5*time.Minute, backoffDuration(20))
}

func TestRateLimiterAllowsUpToLimitThenBlocks(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("sub-1", 3, now))
	}
	require.False(t, rl.Allow("sub-1", 3, now))
	require.True(t, rl.Allow("sub-1", 3, now.Add(time.Minute+time.Second)))
}

package chainclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNameResolverCacheExpiry(t *testing.T) {
	r, err := NewNameResolverDNS("127.0.0.1:53")
	require.NoError(t, err)

	now := time.Now()
	r.nowFn = func() time.Time { return now }
	r.store("example.com\x00policy", `{"maxSingleTxUsdc":5}`, true)

	r.mu.Lock()
	entry, ok := r.cache["example.com\x00policy"]
	r.mu.Unlock()
	require.True(t, ok)
	require.True(t, entry.found)
	require.Equal(t, `{"maxSingleTxUsdc":5}`, entry.value)

	r.nowFn = func() time.Time { return now.Add(nameResolverCacheTTL + time.Second) }
	r.mu.Lock()
	entry, ok = r.cache["example.com\x00policy"]
	stillFresh := ok && r.nowFn().Before(entry.expiresAt)
	r.mu.Unlock()
	require.True(t, ok)
	require.False(t, stillFresh)
}

func TestNewNameResolverDNSRequiresServer(t *testing.T) {
	_, err := NewNameResolverDNS("")
	require.Error(t, err)
}

package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryTrackedDocuments(t *testing.T) {
	m := NewMemory()
	m.Track("doc-1", "Treasury A")
	m.Track("doc-2", "Treasury B")

	docs, err := m.ListTrackedDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "doc-1", docs[0].DocID)
}

func TestMemoryCommandRowLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Track("doc-1", "Treasury A")

	require.NoError(t, m.AppendCommandRow(ctx, "doc-1", "cmd-1", "STATUS", "PENDING_APPROVAL", "https://approve/1", "", ""))
	tables, err := m.LoadTables(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, tables.Commands, 1)
	require.Equal(t, "PENDING_APPROVAL", tables.Commands[0].Status)

	require.NoError(t, m.UpdateCommandRow(ctx, "doc-1", 0, map[string]string{"status": "EXECUTED", "result": "ok"}))
	tables, err = m.LoadTables(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "EXECUTED", tables.Commands[0].Status)
	require.Equal(t, "ok", tables.Commands[0].Result)
}

func TestMemoryUpdateCommandRowOutOfRange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.UpdateCommandRow(ctx, "doc-1", 0, map[string]string{"status": "EXECUTED"})
	require.ErrorIs(t, err, ErrRowIndexOutOfRange)
}

func TestMemoryAppendRows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.AppendAuditRow(ctx, "doc-1", "2026-07-31T00:00:00Z", "setup complete"))
	require.NoError(t, m.AppendActivityRow(ctx, "doc-1", "2026-07-31T00:00:00Z", "TRADE", "bought 1 ETH", "0xabc"))
	require.NoError(t, m.WriteConfigBatch(ctx, "doc-1", []ConfigRow{{Key: "quorum", Value: "2"}}))
	require.NoError(t, m.WriteBalancesSnapshot(ctx, "doc-1", []BalanceRow{{Location: "custody", Asset: "USDC", Balance: "100"}}))
	require.NoError(t, m.WriteOpenOrders(ctx, "doc-1", []OrderRow{{OrderID: "o-1", Side: "BUY", Status: "OPEN"}}))

	tables, err := m.LoadTables(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, tables.Audit, 1)
	require.Len(t, tables.Activity, 1)
	require.Len(t, tables.Config, 1)
	require.Len(t, tables.Balances, 1)
	require.Len(t, tables.Orders, 1)
}

func TestNewHTTPRequiresCredentials(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{URL: "https://example.test/rpc"})
	require.Error(t, err)

	_, err = NewHTTP(HTTPConfig{URL: "https://example.test/rpc", APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
}

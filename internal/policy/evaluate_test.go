package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dwagent/internal/command"
	"dwagent/internal/money"
)

func mustCmd(t *testing.T, raw string) command.Command {
	t.Helper()
	c, err := command.Parse(raw)
	require.NoError(t, err)
	return c
}

func amt(s string) *money.Amount {
	a := money.MustParse(s)
	return &a
}

func TestPayoutWithinCapAllowed(t *testing.T) {
	p := Policy{MaxSingleTxUsdc: amt("50")}
	cmd := mustCmd(t, "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001")
	res := Evaluate(p, cmd, Context{DailySpendUsd: money.Zero})
	require.True(t, res.Allow)
}

func TestPayoutOverCapDenied(t *testing.T) {
	p := Policy{MaxSingleTxUsdc: amt("5")}
	cmd := mustCmd(t, "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001")
	res := Evaluate(p, cmd, Context{DailySpendUsd: money.Zero})
	require.False(t, res.Allow)
	require.Contains(t, res.Reason, "maxSingleTxUsdc")
}

func TestDenyCommandsWins(t *testing.T) {
	p := Policy{DenyCommands: []string{"PAYOUT"}}
	cmd := mustCmd(t, "DW PAYOUT 1 USDC TO 0x0000000000000000000000000000000000000001")
	res := Evaluate(p, cmd, Context{})
	require.False(t, res.Allow)
}

func TestTighteningNeverLoosens(t *testing.T) {
	loose := Policy{MaxSingleTxUsdc: amt("100")}
	tight := Policy{MaxSingleTxUsdc: amt("5")}
	cmd := mustCmd(t, "DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001")

	looseRes := Evaluate(loose, cmd, Context{})
	tightRes := Evaluate(tight, cmd, Context{})

	require.True(t, looseRes.Allow)
	require.False(t, tightRes.Allow)
}

func TestBridgeDisallowed(t *testing.T) {
	no := false
	p := Policy{BridgeAllowed: &no}
	cmd := mustCmd(t, "DW BRIDGE 100 USDC FROM ethereum TO sui")
	res := Evaluate(p, cmd, Context{})
	require.False(t, res.Allow)
}

func TestScheduleIntervalCap(t *testing.T) {
	maxHours := 6
	p := Policy{MaxScheduleIntervalHours: &maxHours}
	cmd := mustCmd(t, "DW SCHEDULE EVERY 12h: PAYOUT 1 USDC TO 0x0000000000000000000000000000000000000001")
	res := Evaluate(p, cmd, Context{})
	require.False(t, res.Allow)
}

package command

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyCommand(t *testing.T) {
	_, err := Parse("")
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestUnknownCommand(t *testing.T) {
	_, err := Parse("DW FOOBAR")
	require.EqualError(t, err, "Unknown command: FOOBAR")
}

func TestPayoutHappyPath(t *testing.T) {
	cmd, err := Parse("DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	p, ok := cmd.(Payout)
	require.True(t, ok)
	require.Equal(t, "10", p.Amount.String())
	require.Equal(t, "0x0000000000000000000000000000000000000001", p.To)
}

func TestPayoutSplitSumMustBe100(t *testing.T) {
	_, err := Parse("DW PAYOUT_SPLIT 100 USDC TO 0x0000000000000000000000000000000000000001:50,0x0000000000000000000000000000000000000002:49")
	require.ErrorIs(t, err, ErrPayoutSplitSum)
}

func TestBridgeSameChainRejected(t *testing.T) {
	_, err := Parse("DW BRIDGE 100 USDC FROM arc TO arc")
	require.ErrorIs(t, err, ErrBridgeSameChain)
}

func TestScheduleNestingRejected(t *testing.T) {
	_, err := Parse("DW SCHEDULE EVERY 1h: SCHEDULE EVERY 2h: LIMIT_BUY ETH 1 USDC @ 100")
	require.ErrorIs(t, err, ErrNestedSchedule)
}

func TestScheduleParsesInnerCommand(t *testing.T) {
	cmd, err := Parse("DW SCHEDULE EVERY 1h: PAYOUT 1 USDC TO 0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	sch, ok := cmd.(Schedule)
	require.True(t, ok)
	require.Equal(t, 1, sch.IntervalHours)
	inner, ok := sch.Inner.(Payout)
	require.True(t, ok)
	require.Equal(t, "1", inner.Amount.String())
}

func TestAutoDetectSend(t *testing.T) {
	cmd, err := Parse("send 5 eth to 0x0000000000000000000000000000000000000001")
	require.NoError(t, err)
	p, ok := cmd.(Payout)
	require.True(t, ok)
	require.Equal(t, "ETH", p.Asset)
}

func TestAutoDetectBuy(t *testing.T) {
	cmd, err := Parse("buy 2 eth at 100")
	require.NoError(t, err)
	lb, ok := cmd.(LimitBuy)
	require.True(t, ok)
	require.Equal(t, "ETH", lb.Base)
	require.Equal(t, "100", lb.Price.String())
}

func TestAutoDetectBridge(t *testing.T) {
	cmd, err := Parse("bridge 10 usdc from ethereum to sui")
	require.NoError(t, err)
	b, ok := cmd.(Bridge)
	require.True(t, ok)
	require.Equal(t, "ethereum", b.FromChain)
	require.Equal(t, "sui", b.ToChain)
}

func TestAutoDetectStatusAliases(t *testing.T) {
	for _, raw := range []string{"status", "price", "prices", "treasury", "settle"} {
		_, err := Parse(raw)
		require.NoError(t, err, raw)
	}
}

func TestUnknownAutoDetect(t *testing.T) {
	_, err := Parse("do a barrel roll")
	require.EqualError(t, err, "Unknown command: do")
}

func TestRoundTrip(t *testing.T) {
	raws := []string{
		"DW PAYOUT 10 USDC TO 0x0000000000000000000000000000000000000001",
		"DW LIMIT_BUY ETH 2 USDC @ 100",
		"DW BRIDGE 100 USDC FROM ethereum TO sui",
		"DW SCHEDULE EVERY 2h: PAYOUT 1 USDC TO 0x0000000000000000000000000000000000000001",
		"DW QUORUM 2",
		"DW SIGNER_ADD 0x0000000000000000000000000000000000000001 WEIGHT 3",
	}
	for _, raw := range raws {
		first, err := Parse(raw)
		require.NoError(t, err, raw)
		again, err := Parse(Unparse(first))
		require.NoError(t, err, raw)
		require.Equal(t, first, again, raw)
	}
}

func TestBCHVariantGatedByFlag(t *testing.T) {
	_, err := ParseWithFlags("DW BCH_SEND 1 TO 0x0000000000000000000000000000000000000001", DefaultFlags())
	require.Error(t, err)

	flags := FeatureFlags{BCHVariants: true}
	cmd, err := ParseWithFlags("DW BCH_SEND 1 TO 0x0000000000000000000000000000000000000001", flags)
	require.NoError(t, err)
	_, ok := cmd.(BchSend)
	require.True(t, ok)
}

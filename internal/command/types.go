// Package command implements the DW command grammar: a pure parser
// mapping a raw text line from a document's Commands table to a tagged
// command value, plus a natural-language auto-detect fallback.
//
// Go has no native sum type, so the grammar is modelled the way the rest of
// the corpus models narrow, exhaustively-dispatched variants: a sealed
// interface (unexported marker method) with one struct per variant. Adding
// a variant without updating executor.Dispatch's switch falls through to
// its default case rather than failing to compile, so an unmapped variant
// shows up at run time as a permanently failed command, not as a compile
// error.
package command

import "dwagent/internal/money"

// Command is the sealed tagged union of every parseable command.
type Command interface {
	Tag() string
	sealed()
}

type base struct{}

func (base) sealed() {}

type Setup struct{ base }

func (Setup) Tag() string { return "SETUP" }

type Status struct{ base }

func (Status) Tag() string { return "STATUS" }

type Quorum struct {
	base
	N int
}

func (Quorum) Tag() string { return "QUORUM" }

type SignerAdd struct {
	base
	Address string
	Weight  int
}

func (SignerAdd) Tag() string { return "SIGNER_ADD" }

type SessionCreate struct{ base }

func (SessionCreate) Tag() string { return "SESSION_CREATE" }

type SessionStatus struct{ base }

func (SessionStatus) Tag() string { return "SESSION_STATUS" }

type SessionClose struct{ base }

func (SessionClose) Tag() string { return "SESSION_CLOSE" }

type YellowSend struct {
	base
	Amount money.Amount
	Asset  string
	To     string
}

func (YellowSend) Tag() string { return "YELLOW_SEND" }

type LimitBuy struct {
	base
	Base  string
	Qty   money.Amount
	Quote string
	Price money.Amount
}

func (LimitBuy) Tag() string { return "LIMIT_BUY" }

type LimitSell struct {
	base
	Base  string
	Qty   money.Amount
	Quote string
	Price money.Amount
}

func (LimitSell) Tag() string { return "LIMIT_SELL" }

type MarketBuy struct {
	base
	Base string
	Qty  money.Amount
}

func (MarketBuy) Tag() string { return "MARKET_BUY" }

type MarketSell struct {
	base
	Base string
	Qty  money.Amount
}

func (MarketSell) Tag() string { return "MARKET_SELL" }

type Cancel struct {
	base
	OrderID string
}

func (Cancel) Tag() string { return "CANCEL" }

type Settle struct{ base }

func (Settle) Tag() string { return "SETTLE" }

type Deposit struct {
	base
	Asset string
	Qty   money.Amount
}

func (Deposit) Tag() string { return "DEPOSIT" }

type Withdraw struct {
	base
	Asset string
	Qty   money.Amount
}

func (Withdraw) Tag() string { return "WITHDRAW" }

type Price struct{ base }

func (Price) Tag() string { return "PRICE" }

type TradeHistory struct{ base }

func (TradeHistory) Tag() string { return "TRADE_HISTORY" }

type StopLoss struct {
	base
	Asset   string
	Qty     money.Amount
	Trigger money.Amount
}

func (StopLoss) Tag() string { return "STOP_LOSS" }

type TakeProfit struct {
	base
	Asset   string
	Qty     money.Amount
	Trigger money.Amount
}

func (TakeProfit) Tag() string { return "TAKE_PROFIT" }

type Payout struct {
	base
	Amount money.Amount
	Asset  string
	To     string
}

func (Payout) Tag() string { return "PAYOUT" }

// PayoutShare is one destination of a PAYOUT_SPLIT, e.g. "addr:50".
type PayoutShare struct {
	To  string
	Pct int
}

type PayoutSplit struct {
	base
	Amount money.Amount
	Asset  string
	Splits []PayoutShare
}

func (PayoutSplit) Tag() string { return "PAYOUT_SPLIT" }

type Bridge struct {
	base
	Amount    money.Amount
	Asset     string
	FromChain string
	ToChain   string
}

func (Bridge) Tag() string { return "BRIDGE" }

type Treasury struct{ base }

func (Treasury) Tag() string { return "TREASURY" }

type Rebalance struct {
	base
	Amount    money.Amount
	FromChain string
	ToChain   string
}

func (Rebalance) Tag() string { return "REBALANCE" }

type SweepYield struct{ base }

func (SweepYield) Tag() string { return "SWEEP_YIELD" }

type PolicyENS struct {
	base
	Name string
}

func (PolicyENS) Tag() string { return "POLICY" }

type Connect struct {
	base
	URI string
}

func (Connect) Tag() string { return "CONNECT" }

type Tx struct {
	base
	JSON string
}

func (Tx) Tag() string { return "TX" }

type Sign struct {
	base
	JSON string
}

func (Sign) Tag() string { return "SIGN" }

// Schedule wraps a recurring inner command. The inner command must not
// itself be a Schedule: schedules do not nest.
type Schedule struct {
	base
	IntervalHours int
	Inner         Command
}

func (Schedule) Tag() string { return "SCHEDULE" }

type CancelSchedule struct {
	base
	ScheduleID string
}

func (CancelSchedule) Tag() string { return "CANCEL_SCHEDULE" }

type AutoRebalance struct {
	base
	On bool
}

func (AutoRebalance) Tag() string { return "AUTO_REBALANCE" }

type Alert struct {
	base
	Asset string
	Below money.Amount
}

func (Alert) Tag() string { return "ALERT" }

type AlertThreshold struct {
	base
	Asset  string
	Amount money.Amount
}

func (AlertThreshold) Tag() string { return "ALERT_THRESHOLD" }

// BchSend is the legacy single-chain grammar variant, kept behind
// FeatureFlags.BCHVariants and disabled by default.
type BchSend struct {
	base
	Amount money.Amount
	To     string
}

func (BchSend) Tag() string { return "BCH_SEND" }

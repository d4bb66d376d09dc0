// Package chainclient defines the narrow per-chain-family interfaces the
// executor dispatches to. Every provider response is normalised at the
// boundary into these types so the core never branches on a
// provider-specific shape.
package chainclient

import (
	"context"

	"dwagent/internal/money"
)

// KeyHandle identifies a document's wallet key without exposing the key
// material itself; implementations resolve it through internal/keyvault.
type KeyHandle struct {
	DocID string
	Chain string
}

// Balances is the normalised balance snapshot returned by EvmClient and
// SuiClient.
type Balances struct {
	Native      money.Amount
	Stable      money.Amount
	StableCoins map[string]money.Amount
}

// TxRequest is a generic signed-transaction request for EvmClient.SendTransaction.
type TxRequest struct {
	To       string
	Value    money.Amount
	Data     []byte
	GasLimit uint64
}

// EvmClient is the capability surface for EVM-family chains.
type EvmClient interface {
	TransferStable(ctx context.Context, key KeyHandle, to string, amount money.Amount) (txRef string, err error)
	GetBalances(ctx context.Context, address string) (Balances, error)
	SendTransaction(ctx context.Context, key KeyHandle, req TxRequest) (txRef string, err error)
	SignMessage(ctx context.Context, key KeyHandle, msg []byte) (sig []byte, err error)
}

// SuiClient is the capability surface for Sui-family chains.
type SuiClient interface {
	TransferCoin(ctx context.Context, key KeyHandle, to string, amount money.Amount) (digest string, err error)
	GetBalances(ctx context.Context, address string) (Balances, error)
}

// Order is one row of OrderBookClient.OpenOrders.
type Order struct {
	OrderID   string
	Side      string
	Price     money.Amount
	Qty       money.Amount
	Status    string
	UpdatedAt int64
	Tx        string
}

// MidPrice is the result of OrderBookClient.MidPrice.
type MidPrice struct {
	Bid money.Amount
	Ask money.Amount
	Mid money.Amount
}

// OrderResult is the common return shape for OrderBookClient mutating calls.
type OrderResult struct {
	Digest    string
	OrderID   string
	ManagerID string
}

// OrderBookClient is the capability surface for the on-chain/off-chain
// limit order book (LIMIT_BUY/SELL, MARKET_BUY/SELL, CANCEL, SETTLE,
// DEPOSIT, WITHDRAW).
type OrderBookClient interface {
	PlaceLimit(ctx context.Context, key KeyHandle, pair, side string, price, qty money.Amount) (OrderResult, error)
	PlaceMarket(ctx context.Context, key KeyHandle, pair, side string, qty money.Amount) (OrderResult, error)
	Cancel(ctx context.Context, key KeyHandle, orderID string) (OrderResult, error)
	Settle(ctx context.Context, key KeyHandle, orderID string) (OrderResult, error)
	Deposit(ctx context.Context, key KeyHandle, asset string, amount money.Amount) (OrderResult, error)
	Withdraw(ctx context.Context, key KeyHandle, asset string, amount money.Amount) (OrderResult, error)
	MidPrice(ctx context.Context, pair string) (MidPrice, error)
	OpenOrders(ctx context.Context, address, pair string) ([]Order, error)
}

// PayoutResult is the common return shape for CustodialStableClient calls.
type PayoutResult struct {
	ProviderTxID string
	OnChainRef   string
	State        string
}

// CustodialStableClient is the capability surface for custodial
// stablecoin rails used by PAYOUT/PAYOUT_SPLIT/BRIDGE.
type CustodialStableClient interface {
	EnsureWallet(ctx context.Context, docID string) (walletID, address string, err error)
	Payout(ctx context.Context, walletID, to string, amount money.Amount) (PayoutResult, error)
	Bridge(ctx context.Context, walletID, destChainTag, to string, amount money.Amount) (PayoutResult, error)
}

// StateChannelClient is the capability surface for off-chain
// message-passing sessions (SESSION_CREATE/STATUS/CLOSE, YELLOW_SEND).
type StateChannelClient interface {
	OpenSession(ctx context.Context, signers []string, allocations map[string]money.Amount) (sessionID string, err error)
	SubmitAppState(ctx context.Context, sessionID string, version int64, intent string, payload []byte, quorumSigs [][]byte) (newVersion int64, err error)
	SendOffChain(ctx context.Context, sessionID, to string, amount money.Amount) (newVersion int64, err error)
	CloseSession(ctx context.Context, sessionID string) (settlementRef string, err error)
	AuthRequest(ctx context.Context, sessionID string) (challenge []byte, err error)
	AuthVerify(ctx context.Context, sessionID string, response []byte) (bool, error)
}

// NameResolver resolves on-chain name-service text records, the
// mechanism a document uses to publish its policy out of band.
type NameResolver interface {
	ResolveTextRecord(ctx context.Context, name, key string) (value string, found bool, err error)
}

// BridgeRouter is a derived dispatcher, not a transport: it enumerates
// the routes between the supported chain families and picks the
// underlying client for a BRIDGE or REBALANCE command.
type BridgeRouter interface {
	Route(ctx context.Context, key KeyHandle, fromChain, toChain, to string, amount money.Amount) (PayoutResult, error)
}

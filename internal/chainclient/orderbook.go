package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"dwagent/internal/money"
)

// OrderBook implements OrderBookClient against an exchange's JSON-RPC
// endpoint, using the same request/response envelope as the Sui client.
type OrderBook struct {
	url        string
	httpClient *http.Client
	signer     Signer
	nextID     atomic.Int64
}

// NewOrderBook constructs an order-book JSON-RPC client.
func NewOrderBook(endpoint string, signer Signer) (*OrderBook, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: orderbook endpoint required")
	}
	return &OrderBook{
		url:        trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		signer:     signer,
	}, nil
}

func (o *OrderBook) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := o.nextID.Add(1)
	buf, err := json.Marshal(suiRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var rpcResp suiRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chainclient: decode orderbook response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chainclient: orderbook rpc error %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

type orderResultWire struct {
	Digest    string `json:"digest"`
	OrderID   string `json:"orderId"`
	ManagerID string `json:"managerId"`
}

func (w orderResultWire) toResult() OrderResult {
	return OrderResult{Digest: w.Digest, OrderID: w.OrderID, ManagerID: w.ManagerID}
}

// PlaceLimit submits a resting limit order.
func (o *OrderBook) PlaceLimit(ctx context.Context, key KeyHandle, pair, side string, price, qty money.Amount) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_placeLimit", []interface{}{key.DocID, pair, side, price.String(), qty.String()}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: place limit order: %w", err)
	}
	return wire.toResult(), nil
}

// PlaceMarket submits a market order.
func (o *OrderBook) PlaceMarket(ctx context.Context, key KeyHandle, pair, side string, qty money.Amount) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_placeMarket", []interface{}{key.DocID, pair, side, qty.String()}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: place market order: %w", err)
	}
	return wire.toResult(), nil
}

// Cancel cancels a resting order.
func (o *OrderBook) Cancel(ctx context.Context, key KeyHandle, orderID string) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_cancel", []interface{}{key.DocID, orderID}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: cancel order: %w", err)
	}
	return wire.toResult(), nil
}

// Settle finalises a filled order.
func (o *OrderBook) Settle(ctx context.Context, key KeyHandle, orderID string) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_settle", []interface{}{key.DocID, orderID}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: settle order: %w", err)
	}
	return wire.toResult(), nil
}

// Deposit moves an asset from the document's wallet into the order book's
// custody for trading.
func (o *OrderBook) Deposit(ctx context.Context, key KeyHandle, asset string, amount money.Amount) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_deposit", []interface{}{key.DocID, asset, amount.String()}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: deposit to orderbook: %w", err)
	}
	return wire.toResult(), nil
}

// Withdraw moves an asset back out of the order book's custody.
func (o *OrderBook) Withdraw(ctx context.Context, key KeyHandle, asset string, amount money.Amount) (OrderResult, error) {
	var wire orderResultWire
	if err := o.call(ctx, "book_withdraw", []interface{}{key.DocID, asset, amount.String()}, &wire); err != nil {
		return OrderResult{}, fmt.Errorf("chainclient: withdraw from orderbook: %w", err)
	}
	return wire.toResult(), nil
}

// MidPrice returns the current bid/ask/mid for a trading pair.
func (o *OrderBook) MidPrice(ctx context.Context, pair string) (MidPrice, error) {
	var wire struct {
		Bid string `json:"bid"`
		Ask string `json:"ask"`
		Mid string `json:"mid"`
	}
	if err := o.call(ctx, "book_midPrice", []interface{}{pair}, &wire); err != nil {
		return MidPrice{}, fmt.Errorf("chainclient: fetch mid price: %w", err)
	}
	bid, err := money.Parse(wire.Bid)
	if err != nil {
		return MidPrice{}, err
	}
	ask, err := money.Parse(wire.Ask)
	if err != nil {
		return MidPrice{}, err
	}
	mid, err := money.Parse(wire.Mid)
	if err != nil {
		return MidPrice{}, err
	}
	return MidPrice{Bid: bid, Ask: ask, Mid: mid}, nil
}

// OpenOrders lists an address's resting orders for a pair.
func (o *OrderBook) OpenOrders(ctx context.Context, address, pair string) ([]Order, error) {
	var wire []struct {
		OrderID   string `json:"orderId"`
		Side      string `json:"side"`
		Price     string `json:"price"`
		Qty       string `json:"qty"`
		Status    string `json:"status"`
		UpdatedAt int64  `json:"updatedAt"`
		Tx        string `json:"tx"`
	}
	if err := o.call(ctx, "book_openOrders", []interface{}{address, pair}, &wire); err != nil {
		return nil, fmt.Errorf("chainclient: list open orders: %w", err)
	}
	out := make([]Order, 0, len(wire))
	for _, row := range wire {
		price, err := money.Parse(row.Price)
		if err != nil {
			return nil, err
		}
		qty, err := money.Parse(row.Qty)
		if err != nil {
			return nil, err
		}
		out = append(out, Order{
			OrderID: row.OrderID, Side: row.Side, Price: price, Qty: qty,
			Status: row.Status, UpdatedAt: row.UpdatedAt, Tx: row.Tx,
		})
	}
	return out, nil
}

var _ OrderBookClient = (*OrderBook)(nil)

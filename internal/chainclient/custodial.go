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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dwagent/internal/money"
)

// CustodialStable implements CustodialStableClient against a custodial
// stablecoin provider's JSON-RPC rail, tracing every call the way the
// node's payout processor traces its transfer attempts.
type CustodialStable struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
	tracer     trace.Tracer
}

// NewCustodialStable constructs a custodial-rail client.
func NewCustodialStable(endpoint string) (*CustodialStable, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chainclient: custodial endpoint required")
	}
	return &CustodialStable{
		url:        trimmed,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tracer:     otel.Tracer("dwagent/chainclient/custodial"),
	}, nil
}

func (c *CustodialStable) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := c.nextID.Add(1)
	buf, err := json.Marshal(suiRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var rpcResp suiRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chainclient: decode custodial response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chainclient: custodial rpc error %d %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// EnsureWallet provisions or returns an existing custodial wallet for a document.
func (c *CustodialStable) EnsureWallet(ctx context.Context, docID string) (string, string, error) {
	ctx, span := c.tracer.Start(ctx, "custodial.EnsureWallet")
	defer span.End()
	span.SetAttributes(attribute.String("doc_id", docID))

	var wire struct {
		WalletID string `json:"walletId"`
		Address  string `json:"address"`
	}
	if err := c.call(ctx, "custodial_ensureWallet", []interface{}{docID}, &wire); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", "", fmt.Errorf("chainclient: ensure custodial wallet: %w", err)
	}
	return wire.WalletID, wire.Address, nil
}

// Payout sends a stablecoin payout from a custodial wallet.
func (c *CustodialStable) Payout(ctx context.Context, walletID, to string, amount money.Amount) (PayoutResult, error) {
	ctx, span := c.tracer.Start(ctx, "custodial.Payout")
	defer span.End()
	span.SetAttributes(attribute.String("wallet_id", walletID), attribute.String("amount", amount.String()))

	var wire struct {
		ProviderTxID string `json:"providerTxId"`
		OnChainRef   string `json:"onChainRef"`
		State        string `json:"state"`
	}
	if err := c.call(ctx, "custodial_payout", []interface{}{walletID, to, amount.String()}, &wire); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return PayoutResult{}, fmt.Errorf("chainclient: custodial payout: %w", err)
	}
	return PayoutResult{ProviderTxID: wire.ProviderTxID, OnChainRef: wire.OnChainRef, State: wire.State}, nil
}

// Bridge moves a stablecoin balance to another chain family via the custodial rail.
func (c *CustodialStable) Bridge(ctx context.Context, walletID, destChainTag, to string, amount money.Amount) (PayoutResult, error) {
	ctx, span := c.tracer.Start(ctx, "custodial.Bridge")
	defer span.End()
	span.SetAttributes(
		attribute.String("wallet_id", walletID),
		attribute.String("dest_chain", destChainTag),
		attribute.String("amount", amount.String()),
	)

	var wire struct {
		ProviderTxID string `json:"providerTxId"`
		OnChainRef   string `json:"onChainRef"`
		State        string `json:"state"`
	}
	if err := c.call(ctx, "custodial_bridge", []interface{}{walletID, destChainTag, to, amount.String()}, &wire); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return PayoutResult{}, fmt.Errorf("chainclient: custodial bridge: %w", err)
	}
	return PayoutResult{ProviderTxID: wire.ProviderTxID, OnChainRef: wire.OnChainRef, State: wire.State}, nil
}

var _ CustodialStableClient = (*CustodialStable)(nil)

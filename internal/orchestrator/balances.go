package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"dwagent/internal/adapter"
	"dwagent/internal/chainclient"
	"dwagent/internal/repo"
)

// balancesTick gathers per-chain balances for every tracked document and
// writes a fresh snapshot back through the adapter.
func (o *Orchestrator) balancesTick(ctx context.Context) error {
	docs, err := o.Repo.ListDocuments()
	if err != nil {
		return fmt.Errorf("balances: list documents: %w", err)
	}
	for _, doc := range docs {
		if err := o.balancesForDocument(ctx, doc); err != nil {
			o.logger().Warn("balances: document failed", "doc_id", doc.DocID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) balancesForDocument(ctx context.Context, doc repo.Document) error {
	if doc.AddressesJSON == "" {
		return nil
	}
	var addresses map[string]string
	if err := json.Unmarshal([]byte(doc.AddressesJSON), &addresses); err != nil {
		return fmt.Errorf("decode addresses: %w", err)
	}

	rows := make([]adapter.BalanceRow, 0, len(addresses))
	for chain, address := range addresses {
		if address == "" {
			continue
		}
		bal, err := o.fetchBalances(ctx, chain, address)
		if err != nil {
			o.logger().Warn("balances: fetch failed", "doc_id", doc.DocID, "chain", chain, "error", err)
			continue
		}
		rows = append(rows, adapter.BalanceRow{Location: chain, Asset: "NATIVE", Balance: bal.Native.String()})
		if !bal.Stable.IsZero() {
			rows = append(rows, adapter.BalanceRow{Location: chain, Asset: "USDC", Balance: bal.Stable.String()})
		}
		for asset, amount := range bal.StableCoins {
			rows = append(rows, adapter.BalanceRow{Location: chain, Asset: asset, Balance: amount.String()})
		}
	}

	if o.Adapter == nil {
		return nil
	}
	return o.Adapter.WriteBalancesSnapshot(ctx, doc.DocID, rows)
}

func (o *Orchestrator) fetchBalances(ctx context.Context, chain, address string) (chainclient.Balances, error) {
	switch chain {
	case "evm":
		if o.Evm == nil {
			return chainclient.Balances{}, fmt.Errorf("no evm client configured")
		}
		return o.Evm.GetBalances(ctx, address)
	case "sui":
		if o.Sui == nil {
			return chainclient.Balances{}, fmt.Errorf("no sui client configured")
		}
		return o.Sui.GetBalances(ctx, address)
	default:
		return chainclient.Balances{}, fmt.Errorf("unknown chain %q", chain)
	}
}

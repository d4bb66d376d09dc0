package executor

import (
	"context"
	"fmt"
	"strings"

	"dwagent/internal/chainclient"
	"dwagent/internal/command"
	"dwagent/internal/money"
	"dwagent/internal/repo"
)

// Dispatch routes a parsed command to the appropriate chain client and
// returns the resultText to persist on success: a digest, receipt id, or
// settlement summary depending on the command kind. Any variant without a
// case here, including commands with no external effect such as STATUS
// and PRICE, falls to the default case and fails permanently with a
// "no execution mapping" error — the gap command.Command's doc comment
// calls out.
func Dispatch(ctx context.Context, e *Executor, key chainclient.KeyHandle, cmd command.Command) (string, error) {
	switch c := cmd.(type) {
	case command.YellowSend:
		if e.StateChannel == nil {
			return "", permanentf("no state channel client configured")
		}
		sess, err := e.Repo.GetStateChannelSession(key.DocID)
		if err != nil {
			return "", permanentf("yellow send: no bound session: %v", err)
		}
		version, err := e.StateChannel.SendOffChain(ctx, sess.SessionID, c.To, c.Amount)
		if err != nil {
			return "", transientf("yellow send: %v", err)
		}
		sess.Version = version
		if err := e.Repo.UpsertStateChannelSession(sess); err != nil {
			return "", transientf("yellow send: persist session: %v", err)
		}
		return fmt.Sprintf("session version %d", version), nil

	case command.LimitBuy:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.PlaceLimit(ctx, key, c.Base+"/"+c.Quote, "BUY", c.Price, c.Qty)
		})
	case command.LimitSell:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.PlaceLimit(ctx, key, c.Base+"/"+c.Quote, "SELL", c.Price, c.Qty)
		})
	case command.MarketBuy:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.PlaceMarket(ctx, key, c.Base, "BUY", c.Qty)
		})
	case command.MarketSell:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.PlaceMarket(ctx, key, c.Base, "SELL", c.Qty)
		})
	case command.Cancel:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.Cancel(ctx, key, c.OrderID)
		})
	case command.Settle:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.Settle(ctx, key, "")
		})
	case command.Deposit:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.Deposit(ctx, key, c.Asset, c.Qty)
		})
	case command.Withdraw:
		return dispatchOrder(e, func() (chainclient.OrderResult, error) {
			return e.OrderBook.Withdraw(ctx, key, c.Asset, c.Qty)
		})

	case command.Payout:
		if e.Custodial == nil {
			return "", permanentf("no custodial stable client configured")
		}
		walletID, _, err := e.Custodial.EnsureWallet(ctx, key.DocID)
		if err != nil {
			return "", transientf("ensure wallet: %v", err)
		}
		result, err := e.Custodial.Payout(ctx, walletID, c.To, c.Amount)
		if err != nil {
			return "", transientf("payout: %v", err)
		}
		return result.ProviderTxID, nil

	case command.PayoutSplit:
		return dispatchPayoutSplit(ctx, e, key, c)

	case command.Bridge:
		if e.Bridge == nil {
			return "", permanentf("no bridge router configured")
		}
		result, err := e.Bridge.Route(ctx, key, c.FromChain, c.ToChain, key.DocID, c.Amount)
		if err != nil {
			return "", transientf("bridge: %v", err)
		}
		return result.ProviderTxID, nil

	case command.Rebalance:
		if e.Bridge == nil {
			return "", permanentf("no bridge router configured")
		}
		result, err := e.Bridge.Route(ctx, key, c.FromChain, c.ToChain, key.DocID, c.Amount)
		if err != nil {
			return "", transientf("rebalance: %v", err)
		}
		return result.ProviderTxID, nil

	case command.SessionCreate:
		if e.StateChannel == nil {
			return "", permanentf("no state channel client configured")
		}
		sessionID, err := e.StateChannel.OpenSession(ctx, []string{key.DocID}, nil)
		if err != nil {
			return "", transientf("session create: %v", err)
		}
		if err := e.Repo.UpsertStateChannelSession(repo.StateChannelSession{
			DocID: key.DocID, SessionID: sessionID, Version: 0, Status: repo.SessionStatusActive,
		}); err != nil {
			return "", transientf("session create: persist session: %v", err)
		}
		return sessionID, nil

	case command.SessionClose:
		if e.StateChannel == nil {
			return "", permanentf("no state channel client configured")
		}
		sess, err := e.Repo.GetStateChannelSession(key.DocID)
		if err != nil {
			return "", permanentf("session close: no bound session: %v", err)
		}
		ref, err := e.StateChannel.CloseSession(ctx, sess.SessionID)
		if err != nil {
			return "", transientf("session close: %v", err)
		}
		sess.Status = repo.SessionStatusClosed
		if err := e.Repo.UpsertStateChannelSession(sess); err != nil {
			return "", transientf("session close: persist session: %v", err)
		}
		return ref, nil

	default:
		return "", permanentf("no execution mapping for command %s", cmd.Tag())
	}
}

func dispatchOrder(e *Executor, fn func() (chainclient.OrderResult, error)) (string, error) {
	if e.OrderBook == nil {
		return "", permanentf("no order book client configured")
	}
	result, err := fn()
	if err != nil {
		return "", transientf("order book: %v", err)
	}
	if result.Digest != "" {
		return result.Digest, nil
	}
	return result.OrderID, nil
}

func dispatchPayoutSplit(ctx context.Context, e *Executor, key chainclient.KeyHandle, c command.PayoutSplit) (string, error) {
	if e.Custodial == nil {
		return "", permanentf("no custodial stable client configured")
	}
	walletID, _, err := e.Custodial.EnsureWallet(ctx, key.DocID)
	if err != nil {
		return "", transientf("ensure wallet: %v", err)
	}
	refs := make([]string, 0, len(c.Splits))
	for _, split := range c.Splits {
		share := c.Amount.Mul(money.Frac(int64(split.Pct), 100))
		result, err := e.Custodial.Payout(ctx, walletID, split.To, share)
		if err != nil {
			return "", transientf("payout split to %s: %v", split.To, err)
		}
		refs = append(refs, result.ProviderTxID)
	}
	return strings.Join(refs, ","), nil
}

package policy

import (
	"fmt"
	"strings"

	"dwagent/internal/command"
	"dwagent/internal/money"
)

// Evaluate is the pure function (policy, parsedCommand, context) ->
// {allow, reason}. It never performs I/O.
func Evaluate(p Policy, cmd command.Command, ctx Context) Result {
	if contains(p.DenyCommands, cmd.Tag()) {
		return deny(fmt.Sprintf("denyCommands: %s is denied", cmd.Tag()))
	}

	switch v := cmd.(type) {
	case command.LimitBuy:
		return evaluateOrder(p, ctx, v.Base, v.Quote, v.Qty, v.Price)
	case command.LimitSell:
		return evaluateOrder(p, ctx, v.Base, v.Quote, v.Qty, v.Price)
	case command.MarketBuy:
		return allow()
	case command.MarketSell:
		return allow()
	case command.StopLoss:
		return evaluateOrder(p, ctx, v.Asset, "USDC", v.Qty, v.Trigger)
	case command.TakeProfit:
		return evaluateOrder(p, ctx, v.Asset, "USDC", v.Qty, v.Trigger)

	case command.Payout:
		return evaluateSingleTx(p, ctx, v.Amount, []string{v.To})
	case command.PayoutSplit:
		dests := make([]string, 0, len(v.Splits))
		for _, s := range v.Splits {
			dests = append(dests, s.To)
		}
		return evaluateSingleTx(p, ctx, v.Amount, dests)
	case command.YellowSend:
		return evaluateSingleTx(p, ctx, v.Amount, nil)
	case command.Bridge:
		return evaluateBridgeLike(p, ctx, v.Amount, v.FromChain, v.ToChain)
	case command.Rebalance:
		return evaluateBridgeLike(p, ctx, v.Amount, v.FromChain, v.ToChain)

	case command.Schedule:
		if p.SchedulingAllowed != nil && !*p.SchedulingAllowed {
			return deny("schedulingAllowed: scheduling is disabled")
		}
		if p.MaxScheduleIntervalHours != nil && v.IntervalHours > *p.MaxScheduleIntervalHours {
			return deny(fmt.Sprintf("maxScheduleIntervalHours: interval %dh exceeds limit %dh", v.IntervalHours, *p.MaxScheduleIntervalHours))
		}
		return allow()
	}

	return allow()
}

func evaluateOrder(p Policy, ctx Context, base, quote string, qty, price money.Amount) Result {
	if len(p.AllowedPairs) > 0 {
		pair := strings.ToUpper(base) + "/" + strings.ToUpper(quote)
		if !contains(p.AllowedPairs, pair) {
			return deny(fmt.Sprintf("allowedPairs: %s is not allow-listed", pair))
		}
	}
	if p.MaxNotionalUsdc != nil {
		notional := qty.Mul(price)
		if notional.GreaterThan(*p.MaxNotionalUsdc) {
			return deny(fmt.Sprintf("maxNotionalUsdc: notional %s exceeds limit %s", notional.String(), p.MaxNotionalUsdc.String()))
		}
	}
	return allow()
}

func evaluateSingleTx(p Policy, ctx Context, amount money.Amount, destinations []string) Result {
	if p.MaxSingleTxUsdc != nil && amount.GreaterThan(*p.MaxSingleTxUsdc) {
		return deny(fmt.Sprintf("maxSingleTxUsdc: amount %s exceeds limit %s", amount.String(), p.MaxSingleTxUsdc.String()))
	}
	if p.DailyLimitUsdc != nil {
		projected := ctx.DailySpendUsd.Add(amount)
		if projected.GreaterThan(*p.DailyLimitUsdc) {
			return deny(fmt.Sprintf("dailyLimitUsdc: projected spend %s exceeds limit %s", projected.String(), p.DailyLimitUsdc.String()))
		}
	}
	if len(p.PayoutAllowlist) > 0 {
		for _, d := range destinations {
			if !contains(p.PayoutAllowlist, d) {
				return deny(fmt.Sprintf("payoutAllowlist: %s is not allow-listed", d))
			}
		}
	}
	return allow()
}

func evaluateBridgeLike(p Policy, ctx Context, amount money.Amount, fromChain, toChain string) Result {
	if p.BridgeAllowed != nil && !*p.BridgeAllowed {
		return deny("bridgeAllowed: bridging is disabled")
	}
	if p.MaxSingleTxUsdc != nil && amount.GreaterThan(*p.MaxSingleTxUsdc) {
		return deny(fmt.Sprintf("maxSingleTxUsdc: amount %s exceeds limit %s", amount.String(), p.MaxSingleTxUsdc.String()))
	}
	if p.DailyLimitUsdc != nil {
		projected := ctx.DailySpendUsd.Add(amount)
		if projected.GreaterThan(*p.DailyLimitUsdc) {
			return deny(fmt.Sprintf("dailyLimitUsdc: projected spend %s exceeds limit %s", projected.String(), p.DailyLimitUsdc.String()))
		}
	}
	if len(p.AllowedChains) > 0 {
		if !contains(p.AllowedChains, fromChain) || !contains(p.AllowedChains, toChain) {
			return deny(fmt.Sprintf("allowedChains: %s/%s not both allow-listed", fromChain, toChain))
		}
	}
	return allow()
}

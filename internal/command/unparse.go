package command

import (
	"fmt"
	"strings"
)

// Unparse formats a Command back into its canonical "DW ..." text so that
// Parse(Unparse(Parse(r).ok)) == Parse(r).ok. Schedule's inner command is
// rendered without the DW prefix, matching the grammar it was parsed
// from.
func Unparse(c Command) string {
	return "DW " + unparseInner(c)
}

func unparseInner(c Command) string {
	switch v := c.(type) {
	case Setup:
		return "SETUP"
	case Status:
		return "STATUS"
	case Quorum:
		return fmt.Sprintf("QUORUM %d", v.N)
	case SignerAdd:
		return fmt.Sprintf("SIGNER_ADD %s WEIGHT %d", v.Address, v.Weight)
	case SessionCreate:
		return "SESSION_CREATE"
	case SessionStatus:
		return "SESSION_STATUS"
	case SessionClose:
		return "SESSION_CLOSE"
	case YellowSend:
		return fmt.Sprintf("YELLOW_SEND %s %s TO %s", v.Amount.String(), v.Asset, v.To)
	case LimitBuy:
		return fmt.Sprintf("LIMIT_BUY %s %s %s @ %s", v.Base, v.Qty.String(), v.Quote, v.Price.String())
	case LimitSell:
		return fmt.Sprintf("LIMIT_SELL %s %s %s @ %s", v.Base, v.Qty.String(), v.Quote, v.Price.String())
	case MarketBuy:
		return fmt.Sprintf("MARKET_BUY %s %s", v.Base, v.Qty.String())
	case MarketSell:
		return fmt.Sprintf("MARKET_SELL %s %s", v.Base, v.Qty.String())
	case Cancel:
		return fmt.Sprintf("CANCEL %s", v.OrderID)
	case Settle:
		return "SETTLE"
	case Deposit:
		return fmt.Sprintf("DEPOSIT %s %s", v.Asset, v.Qty.String())
	case Withdraw:
		return fmt.Sprintf("WITHDRAW %s %s", v.Asset, v.Qty.String())
	case Price:
		return "PRICE"
	case TradeHistory:
		return "TRADE_HISTORY"
	case StopLoss:
		return fmt.Sprintf("STOP_LOSS %s %s @ %s", v.Asset, v.Qty.String(), v.Trigger.String())
	case TakeProfit:
		return fmt.Sprintf("TAKE_PROFIT %s %s @ %s", v.Asset, v.Qty.String(), v.Trigger.String())
	case Payout:
		return fmt.Sprintf("PAYOUT %s USDC TO %s", v.Amount.String(), v.To)
	case PayoutSplit:
		parts := make([]string, 0, len(v.Splits))
		for _, s := range v.Splits {
			parts = append(parts, fmt.Sprintf("%s:%d", s.To, s.Pct))
		}
		return fmt.Sprintf("PAYOUT_SPLIT %s USDC TO %s", v.Amount.String(), strings.Join(parts, ","))
	case Bridge:
		return fmt.Sprintf("BRIDGE %s USDC FROM %s TO %s", v.Amount.String(), v.FromChain, v.ToChain)
	case Treasury:
		return "TREASURY"
	case Rebalance:
		return fmt.Sprintf("REBALANCE %s FROM %s TO %s", v.Amount.String(), v.FromChain, v.ToChain)
	case SweepYield:
		return "SWEEP_YIELD"
	case PolicyENS:
		return fmt.Sprintf("POLICY ENS %s", v.Name)
	case Connect:
		return fmt.Sprintf("CONNECT %s", v.URI)
	case Tx:
		return fmt.Sprintf("TX %s", v.JSON)
	case Sign:
		return fmt.Sprintf("SIGN %s", v.JSON)
	case Schedule:
		return fmt.Sprintf("SCHEDULE EVERY %dh: %s", v.IntervalHours, unparseInner(v.Inner))
	case CancelSchedule:
		return fmt.Sprintf("CANCEL_SCHEDULE %s", v.ScheduleID)
	case AutoRebalance:
		if v.On {
			return "AUTO_REBALANCE ON"
		}
		return "AUTO_REBALANCE OFF"
	case Alert:
		return fmt.Sprintf("ALERT %s BELOW %s", v.Asset, v.Below.String())
	case AlertThreshold:
		return fmt.Sprintf("ALERT_THRESHOLD %s %s", v.Asset, v.Amount.String())
	case BchSend:
		return fmt.Sprintf("BCH_SEND %s TO %s", v.Amount.String(), v.To)
	default:
		return ""
	}
}

package orchestrator

import (
	"context"
	"fmt"

	"dwagent/internal/command"
	"dwagent/internal/money"
	"dwagent/internal/repo"
)

// conditionalTick polls the order book mid-price and evaluates every
// active STOP_LOSS/TAKE_PROFIT row, synthesising a MARKET_SELL command
// when a trigger fires.
func (o *Orchestrator) conditionalTick(ctx context.Context) error {
	if o.OrderBook == nil {
		return nil
	}
	rows, err := o.Repo.ListAllApprovedAcrossDocuments()
	if err != nil {
		return fmt.Errorf("conditional: list approved commands: %w", err)
	}
	for _, row := range rows {
		cmd, err := command.ParseWithFlags(row.RawText, command.DefaultFlags())
		if err != nil {
			continue
		}
		if err := o.evaluateConditional(ctx, row, cmd); err != nil {
			o.logger().Warn("conditional: evaluate failed", "doc_id", row.DocID, "cmd_id", row.ID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) evaluateConditional(ctx context.Context, row repo.CommandRow, cmd command.Command) error {
	var asset string
	var qty, trigger money.Amount
	var isStopLoss bool

	switch c := cmd.(type) {
	case command.StopLoss:
		asset, qty, trigger, isStopLoss = c.Asset, c.Qty, c.Trigger, true
	case command.TakeProfit:
		asset, qty, trigger, isStopLoss = c.Asset, c.Qty, c.Trigger, false
	default:
		return nil
	}

	mid, err := o.OrderBook.MidPrice(ctx, asset+"/USDC")
	if err != nil {
		return fmt.Errorf("mid price: %w", err)
	}

	triggered := false
	if isStopLoss {
		triggered = mid.Mid.Cmp(trigger) <= 0
	} else {
		triggered = mid.Mid.Cmp(trigger) >= 0
	}
	if !triggered {
		return nil
	}

	now := o.now().UnixMilli()
	won, err := o.Repo.CompareAndSwapStatus(row.DocID, row.ID, repo.StatusApproved, repo.StatusExecuted, now)
	if err != nil {
		return fmt.Errorf("close triggered row: %w", err)
	}
	if !won {
		// Another orchestrator instance already closed this trigger.
		return nil
	}
	if err := o.Repo.UpdateCommandFields(row.DocID, row.ID, map[string]interface{}{
		"result_text": fmt.Sprintf("trigger fired at mid %s, synthesised market sell", mid.Mid.String()),
	}, now); err != nil {
		return fmt.Errorf("write trigger result: %w", err)
	}

	synthID := fmt.Sprintf("trigger-%s-%d", row.ID, now)
	raw := fmt.Sprintf("DW MARKET_SELL %s %s", asset, qty.String())
	newRow, err := o.evaluateCommand(ctx, row.DocID, synthID, raw)
	if err != nil {
		return fmt.Errorf("evaluate synthesised order: %w", err)
	}
	if err := o.Repo.AppendCommand(newRow); err != nil {
		return fmt.Errorf("append synthesised order: %w", err)
	}
	if o.Adapter != nil {
		_ = o.Adapter.AppendCommandRow(ctx, row.DocID, newRow.ID, newRow.RawText, newRow.Status, newRow.ApprovalURL, "", newRow.ErrorText)
	}
	return nil
}

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"dwagent/internal/command"
)

const chatExecutePrefix = "!execute"

// chatTick reads every document's Chat table; a new user row without an
// agent reply gets a suggested command, and a row prefixed with
// "!execute" also appends a real command row.
func (o *Orchestrator) chatTick(ctx context.Context) error {
	docs, err := o.Repo.ListDocuments()
	if err != nil {
		return fmt.Errorf("chat: list documents: %w", err)
	}
	for _, doc := range docs {
		if err := o.chatForDocument(ctx, doc.DocID); err != nil {
			o.logger().Warn("chat: document failed", "doc_id", doc.DocID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) chatForDocument(ctx context.Context, docID string) error {
	tables, err := o.Adapter.LoadTables(ctx, docID)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	for _, row := range tables.Chat {
		if row.User == "" || row.Agent != "" {
			continue
		}
		reply := o.suggestReply(row.User)
		if err := o.Adapter.AppendChatReply(ctx, docID, row.RowIndex, reply); err != nil {
			o.logger().Warn("chat: write reply failed", "doc_id", docID, "row", row.RowIndex, "error", err)
			continue
		}
		if text, ok := strings.CutPrefix(strings.TrimSpace(row.User), chatExecutePrefix); ok {
			if err := o.appendSuggestedCommand(ctx, docID, strings.TrimSpace(text)); err != nil {
				o.logger().Warn("chat: append executed command failed", "doc_id", docID, "error", err)
			}
		}
	}
	return nil
}

// suggestReply turns free-form chat text into a suggested DW command
// line; it never executes anything itself, only proposes.
func (o *Orchestrator) suggestReply(user string) string {
	candidate := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(user), chatExecutePrefix))
	if _, err := command.Parse(candidate); err == nil {
		return fmt.Sprintf("Understood. Run with %s %s to confirm.", chatExecutePrefix, candidate)
	}
	if _, err := command.Parse("DW " + candidate); err == nil {
		return fmt.Sprintf("Understood. Run with %s DW %s to confirm.", chatExecutePrefix, candidate)
	}
	return "I couldn't map that to a known command. Try a formal DW command, e.g. \"DW PAYOUT 10 USDC TO 0x...\"."
}

func (o *Orchestrator) appendSuggestedCommand(ctx context.Context, docID, raw string) error {
	if raw == "" {
		return nil
	}
	cmdID := fmt.Sprintf("chat-%s-%d", docID, o.now().UnixMilli())
	row, err := o.evaluateCommand(ctx, docID, cmdID, raw)
	if err != nil {
		return err
	}
	if err := o.Repo.AppendCommand(row); err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	if o.Adapter == nil {
		return nil
	}
	return o.Adapter.AppendCommandRow(ctx, docID, row.ID, row.RawText, row.Status, row.ApprovalURL, "", row.ErrorText)
}

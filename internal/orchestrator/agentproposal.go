package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

// agentProposalTick runs the configured proposal heuristics for every
// document that has opted in via AGENT_AUTOPROPOSE=true in its Config
// table, inserting any command lines it suggests.
func (o *Orchestrator) agentProposalTick(ctx context.Context) error {
	if o.Proposer == nil || o.Policy == nil {
		return nil
	}
	docs, err := o.Repo.ListDocuments()
	if err != nil {
		return fmt.Errorf("agentProposal: list documents: %w", err)
	}
	for _, doc := range docs {
		enabled, err := o.autoproposeEnabled(ctx, doc.DocID)
		if err != nil {
			o.logger().Warn("agentProposal: config lookup failed", "doc_id", doc.DocID, "error", err)
			continue
		}
		if !enabled {
			continue
		}
		pol, _, err := o.Policy(ctx, doc.DocID)
		if err != nil {
			o.logger().Warn("agentProposal: policy lookup failed", "doc_id", doc.DocID, "error", err)
			continue
		}
		suggestions, err := o.Proposer.Propose(ctx, doc.DocID, pol)
		if err != nil {
			o.logger().Warn("agentProposal: proposer failed", "doc_id", doc.DocID, "error", err)
			continue
		}
		for i, raw := range suggestions {
			cmdID := fmt.Sprintf("agent-%s-%d-%d", doc.DocID, o.now().UnixMilli(), i)
			row, err := o.evaluateCommand(ctx, doc.DocID, cmdID, raw)
			if err != nil {
				o.logger().Warn("agentProposal: evaluate failed", "doc_id", doc.DocID, "error", err)
				continue
			}
			if err := o.Repo.AppendCommand(row); err != nil {
				o.logger().Warn("agentProposal: append failed", "doc_id", doc.DocID, "error", err)
				continue
			}
			if o.Adapter != nil {
				_ = o.Adapter.AppendCommandRow(ctx, doc.DocID, row.ID, row.RawText, row.Status, row.ApprovalURL, "", row.ErrorText)
			}
		}
	}
	return nil
}

func (o *Orchestrator) autoproposeEnabled(ctx context.Context, docID string) (bool, error) {
	tables, err := o.Adapter.LoadTables(ctx, docID)
	if err != nil {
		return false, err
	}
	for _, row := range tables.Config {
		if row.Key == agentAutoproposeConfigKey {
			return strings.EqualFold(strings.TrimSpace(row.Value), "true"), nil
		}
	}
	return false, nil
}

package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"dwagent/internal/adapter"
	"dwagent/internal/command"
	"dwagent/internal/policy"
	"dwagent/internal/repo"
)

// pollTick reads every tracked document's Commands table, skips documents
// whose user-editable cells are unchanged since the last poll, and
// materialises any row whose id is not yet known to the repository.
func (o *Orchestrator) pollTick(ctx context.Context) error {
	docs, err := o.Repo.ListDocuments()
	if err != nil {
		return fmt.Errorf("poll: list documents: %w", err)
	}
	for _, doc := range docs {
		if err := o.pollDocument(ctx, doc.DocID); err != nil {
			o.logger().Warn("poll: document failed", "doc_id", doc.DocID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) pollDocument(ctx context.Context, docID string) error {
	tables, err := o.Adapter.LoadTables(ctx, docID)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	hash := hashCommandRows(tables.Commands)
	o.mu.Lock()
	unchanged := o.docHashes[docID] == hash
	o.docHashes[docID] = hash
	o.mu.Unlock()
	if unchanged {
		return nil
	}

	known, err := o.Repo.ExistingCommandIDs(docID)
	if err != nil {
		return fmt.Errorf("existing command ids: %w", err)
	}

	for _, row := range tables.Commands {
		if row.ID == "" || known[row.ID] {
			continue
		}
		if err := o.materializeCommand(ctx, docID, row); err != nil {
			o.logger().Warn("poll: materialize command failed", "doc_id", docID, "row_id", row.ID, "error", err)
		}
	}
	return nil
}

func hashCommandRows(rows []adapter.CommandTableRow) string {
	h := sha256.New()
	for _, r := range rows {
		h.Write([]byte(r.ID))
		h.Write([]byte{0})
		h.Write([]byte(r.Command))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (o *Orchestrator) materializeCommand(ctx context.Context, docID string, tableRow adapter.CommandTableRow) error {
	row, err := o.evaluateCommand(ctx, docID, tableRow.ID, tableRow.Command)
	if err != nil {
		return err
	}
	if err := o.Repo.AppendCommand(row); err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	if err := o.Adapter.UpdateCommandRow(ctx, docID, tableRow.RowIndex, map[string]string{
		"status":      row.Status,
		"approvalUrl": row.ApprovalURL,
		"error":       row.ErrorText,
	}); err != nil {
		return fmt.Errorf("write back status: %w", err)
	}
	return nil
}

// evaluateCommand runs the shared parse -> policy -> status pipeline for
// a single raw command line, without persisting it; both the poll loop
// and the chat loop build a repo.CommandRow this way.
func (o *Orchestrator) evaluateCommand(ctx context.Context, docID, cmdID, raw string) (repo.CommandRow, error) {
	nowMillis := o.now().UnixMilli()
	cmd, parseErr := command.ParseWithFlags(raw, command.DefaultFlags())

	row := repo.CommandRow{
		ID: cmdID, DocID: docID, RawText: raw,
		CreatedAt: nowMillis, UpdatedAt: nowMillis,
	}
	if parseErr != nil {
		row.Status = repo.StatusInvalid
		row.ParseError = parseErr.Error()
		return row, nil
	}
	if o.Policy == nil {
		row.Status = repo.StatusRaw
		return row, nil
	}
	pol, polCtx, polErr := o.Policy(ctx, docID)
	if polErr != nil {
		return repo.CommandRow{}, fmt.Errorf("policy lookup: %w", polErr)
	}
	result := policy.Evaluate(pol, cmd, polCtx)
	switch {
	case !result.Allow:
		row.Status = repo.StatusRejected
		row.ErrorText = result.Reason
	case pol.RequireApprovalEffective():
		row.Status = repo.StatusPendingApproval
		if o.Mint != nil {
			row.ApprovalURL = o.Mint(docID, cmdID)
		}
	default:
		row.Status = repo.StatusApproved
	}
	return row, nil
}

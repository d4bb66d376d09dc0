// Package reconcile builds the nightly reconciliation report: it joins
// the repository's command rows against each document's own Commands
// table and flags drift that would otherwise go unnoticed, the same
// invoice-vs-on-chain join services/otc-gateway/recon/reconciler.go
// performs for its own domain.
package reconcile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dwagent/internal/adapter"
	"dwagent/internal/repo"
)

// Anomaly types raised during a reconciliation run.
const (
	AnomalyMissingInSheet  = "missing_in_sheet"
	AnomalyStatusMismatch  = "status_mismatch"
	AnomalyStuckPending    = "stuck_pending_approval"
	AnomalyStuckExecuting  = "stuck_executing"
)

// StuckPendingAfter and StuckExecutingAfter bound how long a command may
// sit in PENDING_APPROVAL or EXECUTING before it is reported as stuck.
const (
	StuckPendingAfter   = 24 * time.Hour
	StuckExecutingAfter = 10 * time.Minute
)

// AlertFunc is invoked for every anomaly found; a nil-returning
// implementation is the default no-op.
type AlertFunc func(ctx context.Context, anomaly Anomaly) error

// Anomaly describes one piece of drift between the repository's view of a
// command and the document's own table, or a command stuck in a
// non-terminal state past its expected dwell time.
type Anomaly struct {
	Type       string
	DocID      string
	CmdID      string
	Details    string
}

// ReportRow summarises one command's reconciliation status.
type ReportRow struct {
	DocID         string
	CmdID         string
	RepoStatus    string
	SheetStatus   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Age           time.Duration
	MissingSheet  bool
	StatusDrift   bool
}

// Config wires a Reconciler's dependencies.
type Config struct {
	Repo      *repo.Repository
	Adapter   adapter.Adapter
	OutputDir string
	DryRun    bool
	Now       func() time.Time
	Alert     AlertFunc
	Logger    *slog.Logger
}

// Reconciler runs a point-in-time comparison between repo.CommandRow and
// each tracked document's Commands table.
type Reconciler struct {
	repo      *repo.Repository
	adapter   adapter.Adapter
	outputDir string
	dryRun    bool
	now       func() time.Time
	alert     AlertFunc
	logger    *slog.Logger
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("reconcile: repo is required")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("reconcile: adapter is required")
	}
	outputDir := cfg.OutputDir
	if strings.TrimSpace(outputDir) == "" {
		outputDir = filepath.Join("dwagent-data", "recon")
	}
	alert := cfg.Alert
	if alert == nil {
		alert = func(ctx context.Context, a Anomaly) error { return nil }
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		repo: cfg.Repo, adapter: cfg.Adapter, outputDir: outputDir,
		dryRun: cfg.DryRun, now: now, alert: alert, logger: logger,
	}, nil
}

// Result summarises a reconciliation run.
type Result struct {
	Rows      []ReportRow
	Anomalies []Anomaly
	ReportCSV string
}

// Run compares every command row the repository holds against its
// document's own Commands table and reports drift.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	rows, err := r.repo.ListAllCommandsAcrossDocuments()
	if err != nil {
		return nil, fmt.Errorf("reconcile: list commands: %w", err)
	}

	sheetByDoc := make(map[string]map[string]adapter.CommandTableRow)
	result := &Result{}
	now := r.now()

	for _, row := range rows {
		sheet, ok := sheetByDoc[row.DocID]
		if !ok {
			sheet = r.loadSheet(ctx, row.DocID)
			sheetByDoc[row.DocID] = sheet
		}

		reportRow := ReportRow{
			DocID:      row.DocID,
			CmdID:      row.ID,
			RepoStatus: row.Status,
			CreatedAt:  time.UnixMilli(row.CreatedAt),
			UpdatedAt:  time.UnixMilli(row.UpdatedAt),
			Age:        now.Sub(time.UnixMilli(row.UpdatedAt)),
		}

		sheetRow, present := sheet[row.ID]
		if !present {
			reportRow.MissingSheet = true
			result.Anomalies = append(result.Anomalies, r.raise(ctx, Anomaly{
				Type: AnomalyMissingInSheet, DocID: row.DocID, CmdID: row.ID,
				Details: "command present in repository but not in document's Commands table",
			}))
		} else {
			reportRow.SheetStatus = sheetRow.Status
			if !strings.EqualFold(sheetRow.Status, row.Status) {
				reportRow.StatusDrift = true
				result.Anomalies = append(result.Anomalies, r.raise(ctx, Anomaly{
					Type: AnomalyStatusMismatch, DocID: row.DocID, CmdID: row.ID,
					Details: fmt.Sprintf("repository status %s vs sheet status %s", row.Status, sheetRow.Status),
				}))
			}
		}

		if row.Status == repo.StatusPendingApproval && reportRow.Age > StuckPendingAfter {
			result.Anomalies = append(result.Anomalies, r.raise(ctx, Anomaly{
				Type: AnomalyStuckPending, DocID: row.DocID, CmdID: row.ID,
				Details: fmt.Sprintf("pending approval for %s", reportRow.Age.Round(time.Minute)),
			}))
		}
		if row.Status == repo.StatusExecuting && reportRow.Age > StuckExecutingAfter {
			result.Anomalies = append(result.Anomalies, r.raise(ctx, Anomaly{
				Type: AnomalyStuckExecuting, DocID: row.DocID, CmdID: row.ID,
				Details: fmt.Sprintf("executing for %s without a terminal result", reportRow.Age.Round(time.Minute)),
			}))
		}

		result.Rows = append(result.Rows, reportRow)
	}

	if !r.dryRun && len(result.Rows) > 0 {
		path, err := r.writeCSV(result.Rows)
		if err != nil {
			return nil, err
		}
		result.ReportCSV = path
	}
	return result, nil
}

func (r *Reconciler) loadSheet(ctx context.Context, docID string) map[string]adapter.CommandTableRow {
	tables, err := r.adapter.LoadTables(ctx, docID)
	if err != nil {
		r.logger.Warn("reconcile: load document tables failed", "doc_id", docID, "error", err)
		return map[string]adapter.CommandTableRow{}
	}
	byID := make(map[string]adapter.CommandTableRow, len(tables.Commands))
	for _, row := range tables.Commands {
		byID[row.ID] = row
	}
	return byID
}

func (r *Reconciler) raise(ctx context.Context, a Anomaly) Anomaly {
	if err := r.alert(ctx, a); err != nil {
		r.logger.Warn("reconcile: alert delivery failed", "error", err)
	}
	return a
}

func (r *Reconciler) writeCSV(rows []ReportRow) (string, error) {
	sorted := append([]ReportRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DocID != sorted[j].DocID {
			return sorted[i].DocID < sorted[j].DocID
		}
		return sorted[i].CmdID < sorted[j].CmdID
	})

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("reconcile: ensure output dir: %w", err)
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("reconciliation_%s.csv", r.now().UTC().Format("20060102T150405Z")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("reconcile: create report file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"doc_id", "cmd_id", "repo_status", "sheet_status", "created_at", "updated_at", "age_minutes", "missing_sheet", "status_drift"}); err != nil {
		return "", fmt.Errorf("reconcile: write header: %w", err)
	}
	for _, row := range sorted {
		record := []string{
			row.DocID, row.CmdID, row.RepoStatus, row.SheetStatus,
			row.CreatedAt.Format(time.RFC3339), row.UpdatedAt.Format(time.RFC3339),
			fmt.Sprintf("%.1f", row.Age.Minutes()),
			boolString(row.MissingSheet), boolString(row.StatusDrift),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("reconcile: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("reconcile: flush report: %w", err)
	}
	return path, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

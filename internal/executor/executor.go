// Package executor implements the executor tick: it claims APPROVED
// commands with a compare-and-swap into EXECUTING, dispatches them to
// the appropriate chain client, and writes the terminal EXECUTED/FAILED
// result. Transient failures retry with exponential backoff capped at
// 60 s for up to 5 attempts before the command is marked FAILED.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dwagent/internal/adapter"
	"dwagent/internal/chainclient"
	"dwagent/internal/command"
	"dwagent/internal/keyvault"
	"dwagent/internal/metrics"
	"dwagent/internal/repo"
	"dwagent/internal/webhook"
)

const (
	maxAttempts = 5
	baseBackoff = 2 * time.Second
	maxBackoff  = 60 * time.Second
)

// ClassifiedError distinguishes a transient failure (worth retrying) from
// a permanent, recognised external failure.
type ClassifiedError struct {
	Transient bool
	Reason    string
}

func (e *ClassifiedError) Error() string { return e.Reason }

func transientf(format string, args ...interface{}) error {
	return &ClassifiedError{Transient: true, Reason: fmt.Sprintf(format, args...)}
}

func permanentf(format string, args ...interface{}) error {
	return &ClassifiedError{Transient: false, Reason: fmt.Sprintf(format, args...)}
}

// Executor dispatches APPROVED commands to chain clients.
type Executor struct {
	Repo         *repo.Repository
	Adapter      adapter.Adapter
	Evm          chainclient.EvmClient
	Sui          chainclient.SuiClient
	OrderBook    chainclient.OrderBookClient
	Custodial    chainclient.CustodialStableClient
	StateChannel chainclient.StateChannelClient
	Bridge       chainclient.BridgeRouter
	Vault        *keyvault.Vault

	Metrics *metrics.Registry
	Webhook *webhook.Worker
	Logger  *slog.Logger
	Now    func() time.Time
	tracer trace.Tracer

	mu       sync.Mutex
	attempts map[string]int
	nextTry  map[string]time.Time
	paused   atomic.Bool
}

// Pause stops Tick from dispatching any new command; commands already
// mid-dispatch are left to finish, grounded on
// services/payoutd/processor.go's Pause/Resume pair.
func (e *Executor) Pause() { e.paused.Store(true) }

// Resume re-enables dispatch.
func (e *Executor) Resume() { e.paused.Store(false) }

// Paused reports whether Tick is currently a no-op.
func (e *Executor) Paused() bool { return e.paused.Load() }

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Executor) tracerOrDefault() trace.Tracer {
	if e.tracer != nil {
		return e.tracer
	}
	return otel.Tracer("dwagent/executor")
}

// Tick processes every APPROVED command across all tracked documents on
// the executor's own cadence, then retries every EXECUTING command this
// executor saw fail transiently whose backoff has elapsed. STOP_LOSS/TAKE_PROFIT rows are left
// APPROVED: they are standing triggers watched by the conditional/price
// loop, which synthesises the MARKET order this executor eventually runs.
func (e *Executor) Tick(ctx context.Context) error {
	if e.paused.Load() {
		return nil
	}
	rows, err := e.Repo.ListAllApprovedAcrossDocuments()
	if err != nil {
		return fmt.Errorf("executor: list approved commands: %w", err)
	}
	for _, row := range rows {
		if isConditionalOrder(row.RawText) {
			continue
		}
		if e.isBackingOff(row.ID) {
			continue
		}
		e.process(ctx, row)
	}

	all, err := e.Repo.ListAllCommandsAcrossDocuments()
	if err != nil {
		return fmt.Errorf("executor: list commands awaiting retry: %w", err)
	}
	for _, row := range all {
		e.mu.Lock()
		retrying := e.attempts[row.ID] > 0
		e.mu.Unlock()
		if row.Status != repo.StatusExecuting || !retrying || e.isBackingOff(row.ID) {
			continue
		}
		// Hand the claim back so process's APPROVED→EXECUTING CAS retakes it.
		if won, err := e.Repo.CompareAndSwapStatus(row.DocID, row.ID, repo.StatusExecuting, repo.StatusApproved, e.now().UnixMilli()); err == nil && won {
			e.process(ctx, row)
		}
	}
	return nil
}

func isConditionalOrder(raw string) bool {
	fields := strings.Fields(raw)
	for _, f := range fields {
		if f == "STOP_LOSS" || f == "TAKE_PROFIT" {
			return true
		}
	}
	return false
}

func (e *Executor) isBackingOff(cmdID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nextTry == nil {
		return false
	}
	t, ok := e.nextTry[cmdID]
	return ok && e.now().Before(t)
}

func (e *Executor) recordAttempt(cmdID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attempts == nil {
		e.attempts = make(map[string]int)
		e.nextTry = make(map[string]time.Time)
	}
	e.attempts[cmdID]++
	n := e.attempts[cmdID]
	backoff := baseBackoff * time.Duration(1<<uint(n-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	e.nextTry[cmdID] = e.now().Add(backoff)
	return n
}

func (e *Executor) clearAttempts(cmdID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attempts, cmdID)
	delete(e.nextTry, cmdID)
}

func (e *Executor) process(ctx context.Context, row repo.CommandRow) {
	ctx, span := e.tracerOrDefault().Start(ctx, "executor.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("doc_id", row.DocID), attribute.String("cmd_id", row.ID))

	nowMillis := e.now().UnixMilli()
	won, err := e.Repo.CompareAndSwapStatus(row.DocID, row.ID, repo.StatusApproved, repo.StatusExecuting, nowMillis)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if e.Logger != nil {
			e.Logger.Error("executor: cas failed", "doc_id", row.DocID, "cmd_id", row.ID, "error", err)
		}
		return
	}
	if !won {
		// Another executor instance already claimed this command.
		return
	}

	cmd, parseErr := command.ParseWithFlags(row.RawText, command.DefaultFlags())
	if parseErr != nil {
		e.fail(ctx, row, fmt.Sprintf("reparse at execution time: %v", parseErr))
		return
	}

	if gateErr := e.enforceStateChannelGate(ctx, row, cmd); gateErr != nil {
		e.handleClassified(ctx, span, row, gateErr)
		return
	}

	key := chainclient.KeyHandle{DocID: row.DocID}
	result, dispatchErr := Dispatch(ctx, e, key, cmd)
	if dispatchErr == nil {
		e.clearAttempts(row.ID)
		e.succeed(ctx, row, result)
		return
	}
	e.handleClassified(ctx, span, row, dispatchErr)
}

// handleClassified applies the shared transient/permanent handling §4.6
// requires for both the state-channel gate and the dispatch call it
// guards: a permanent failure (or one that has exhausted its retries)
// marks the command FAILED; a transient one leaves status=EXECUTING for
// the next tick past the backoff window to retry.
func (e *Executor) handleClassified(ctx context.Context, span trace.Span, row repo.CommandRow, err error) {
	classified, ok := err.(*ClassifiedError)
	if !ok {
		classified = &ClassifiedError{Transient: false, Reason: err.Error()}
	}
	span.SetStatus(codes.Error, classified.Reason)

	if !classified.Transient {
		e.clearAttempts(row.ID)
		e.fail(ctx, row, classified.Reason)
		return
	}

	attempt := e.recordAttempt(row.ID)
	if attempt >= maxAttempts {
		e.clearAttempts(row.ID)
		e.fail(ctx, row, fmt.Sprintf("transient failure after %d attempts: %s", attempt, classified.Reason))
		return
	}
	// Leave status=EXECUTING; the next tick past the backoff window retries.
	if e.Logger != nil {
		e.Logger.Warn("executor: transient failure, will retry", "doc_id", row.DocID, "cmd_id", row.ID, "attempt", attempt, "reason", classified.Reason)
	}
}

func (e *Executor) succeed(ctx context.Context, row repo.CommandRow, resultText string) {
	now := e.now().UnixMilli()
	if err := e.Repo.UpdateCommandFields(row.DocID, row.ID, map[string]interface{}{
		"status":      repo.StatusExecuted,
		"result_text": resultText,
	}, now); err != nil && e.Logger != nil {
		e.Logger.Error("executor: write executed result", "doc_id", row.DocID, "cmd_id", row.ID, "error", err)
	}
	if _, err := e.Repo.IncrCounter(row.DocID, repo.CounterCommandsExecuted, 1); err != nil && e.Logger != nil {
		e.Logger.Error("executor: increment commands_executed", "error", err)
	}
	if e.Metrics != nil {
		e.Metrics.CommandsExecuted.WithLabelValues(row.DocID).Inc()
	}
	if e.Adapter != nil {
		_ = e.Adapter.AppendActivityRow(ctx, row.DocID, isoMillis(now), row.RawText, resultText, resultText)
		_ = e.Adapter.AppendAuditRow(ctx, row.DocID, isoMillis(now), fmt.Sprintf("command %s executed: %s", row.ID, resultText))
	}
	if e.Webhook != nil {
		e.Webhook.Notify(ctx, webhook.Event{
			DocID: row.DocID, CmdID: row.ID, Status: repo.StatusExecuted,
			ResultText: resultText, OccurredAt: time.UnixMilli(now),
		})
	}
}

func (e *Executor) fail(ctx context.Context, row repo.CommandRow, reason string) {
	now := e.now().UnixMilli()
	if err := e.Repo.UpdateCommandFields(row.DocID, row.ID, map[string]interface{}{
		"status":     repo.StatusFailed,
		"error_text": reason,
	}, now); err != nil && e.Logger != nil {
		e.Logger.Error("executor: write failed result", "doc_id", row.DocID, "cmd_id", row.ID, "error", err)
	}
	if e.Adapter != nil {
		_ = e.Adapter.AppendAuditRow(ctx, row.DocID, isoMillis(now), fmt.Sprintf("command %s failed: %s", row.ID, reason))
	}
	if e.Webhook != nil {
		e.Webhook.Notify(ctx, webhook.Event{
			DocID: row.DocID, CmdID: row.ID, Status: repo.StatusFailed,
			ErrorText: reason, OccurredAt: time.UnixMilli(now),
		})
	}
}

func isoMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

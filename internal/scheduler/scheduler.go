// Package scheduler implements the scheduler tick: scan due schedules,
// reserve each one exactly once, and materialise its inner command
// through the normal parse→policy→quorum pipeline.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dwagent/internal/command"
	"dwagent/internal/policy"
	"dwagent/internal/repo"
)

// PolicyLookup resolves a document's effective policy for evaluating a
// freshly materialised scheduled command.
type PolicyLookup func(ctx context.Context, docID string) (policy.Policy, policy.Context, error)

// URLMinter mints an approval URL for a newly pending command.
type URLMinter func(docID, cmdID string) string

// Tick implements one scheduler sweep, run on a 30 s cadence.
type Tick struct {
	Repo    *repo.Repository
	Policy  PolicyLookup
	Mint    URLMinter
	Now     func() time.Time
	Logger  *slog.Logger
	NewID   func() string
}

func (t *Tick) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tick) newID() string {
	if t.NewID != nil {
		return t.NewID()
	}
	return uuid.NewString()
}

// Run scans every due schedule, reserves it, and materialises a new
// command row for its inner command text.
func (t *Tick) Run(ctx context.Context) error {
	nowMillis := t.now().UnixMilli()
	due, err := t.Repo.DueSchedules(nowMillis)
	if err != nil {
		return fmt.Errorf("scheduler: list due schedules: %w", err)
	}
	for _, sched := range due {
		if err := t.fire(ctx, sched, nowMillis); err != nil {
			if t.Logger != nil {
				t.Logger.Error("scheduler: fire failed", "schedule_id", sched.ID, "doc_id", sched.DocID, "error", err)
			}
		}
	}
	return nil
}

func (t *Tick) fire(ctx context.Context, sched repo.Schedule, nowMillis int64) error {
	nextRunAt := nowMillis + sched.IntervalHours*int64(time.Hour/time.Millisecond)
	won, err := t.Repo.ReserveDueSchedule(sched.ID, sched.NextRunAt, nextRunAt, nowMillis)
	if err != nil {
		return fmt.Errorf("reserve schedule: %w", err)
	}
	if !won {
		// Another scheduler tick already reserved this run.
		return nil
	}

	cmd, err := command.ParseWithFlags(sched.InnerCommand, command.DefaultFlags())
	status := repo.StatusRaw
	parseErrText := ""
	if err != nil {
		status = repo.StatusInvalid
		parseErrText = err.Error()
	}

	cmdID := t.newID()
	row := repo.CommandRow{
		ID: cmdID, DocID: sched.DocID, RawText: sched.InnerCommand,
		Status: status, ParseError: parseErrText, ScheduleID: sched.ID,
		CreatedAt: nowMillis, UpdatedAt: nowMillis,
	}
	if err == nil && t.Policy != nil {
		pol, polCtx, polErr := t.Policy(ctx, sched.DocID)
		if polErr == nil {
			result := policy.Evaluate(pol, cmd, polCtx)
			if !result.Allow {
				row.Status = repo.StatusRejected
				row.ErrorText = result.Reason
			} else if pol.RequireApprovalEffective() {
				row.Status = repo.StatusPendingApproval
				if t.Mint != nil {
					row.ApprovalURL = t.Mint(sched.DocID, cmdID)
				}
			} else {
				row.Status = repo.StatusApproved
			}
		}
	}

	if err := t.Repo.AppendCommand(row); err != nil {
		return fmt.Errorf("append scheduled command: %w", err)
	}
	return nil
}

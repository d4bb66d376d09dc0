// Package policy implements the declarative policy evaluator: a pure
// function from (policy, parsed command, rolling spend context) to an
// allow/deny verdict, with no I/O so it is exhaustively unit-testable.
package policy

import "dwagent/internal/money"

// Policy is the set of guardrails a document can declare. Every field is
// optional; an absent field imposes no constraint. It is the Go-native
// decoding target for the JSON policy blob stored under a document's
// name-resolver text record.
type Policy struct {
	RequireApproval          *bool          `json:"requireApproval,omitempty"`
	MaxNotionalUsdc          *money.Amount  `json:"maxNotionalUsdc,omitempty"`
	MaxSingleTxUsdc          *money.Amount  `json:"maxSingleTxUsdc,omitempty"`
	DailyLimitUsdc           *money.Amount  `json:"dailyLimitUsdc,omitempty"`
	AllowedPairs             []string       `json:"allowedPairs,omitempty"`
	PayoutAllowlist          []string       `json:"payoutAllowlist,omitempty"`
	DenyCommands             []string       `json:"denyCommands,omitempty"`
	SchedulingAllowed        *bool          `json:"schedulingAllowed,omitempty"`
	MaxScheduleIntervalHours *int           `json:"maxScheduleIntervalHours,omitempty"`
	BridgeAllowed            *bool          `json:"bridgeAllowed,omitempty"`
	AllowedChains            []string       `json:"allowedChains,omitempty"`
}

// Context carries the only piece of mutable state the evaluator needs:
// the rolling daily spend already committed for the document.
type Context struct {
	DailySpendUsd money.Amount
}

// Result is the evaluator's verdict.
type Result struct {
	Allow  bool
	Reason string
}

func allow() Result { return Result{Allow: true} }

func deny(reason string) Result { return Result{Allow: false, Reason: reason} }

// RequireApprovalEffective resolves the effective requireApproval flag:
// absent defaults to true (approval required).
func (p Policy) RequireApprovalEffective() bool {
	if p.RequireApproval == nil {
		return true
	}
	return *p.RequireApproval
}

func contains(list []string, needle string) bool {
	for _, v := range list {
		if v == needle {
			return true
		}
	}
	return false
}

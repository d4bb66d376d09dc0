// Package quorum ties internal/policy's decision on whether a command
// needs approval to internal/repo's atomic approval bookkeeping, minting
// approval URLs and orchestrating promotion exactly once per command.
package quorum

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"dwagent/internal/repo"
)

// URLMinter builds a public approval URL for a pending command.
type URLMinter struct {
	BaseURL string
}

// Mint returns the approval URL a signer follows to approve or reject a command.
func (m URLMinter) Mint(docID, cmdID string) string {
	return strings.TrimRight(m.BaseURL, "/") + "/approve/" + docID + "/" + cmdID
}

// NewApprovalToken generates an opaque, unguessable token bound to one
// command's approval flow (e.g. embedded in the approval URL's query
// string for unauthenticated single-use links).
func NewApprovalToken() (string, error) {
	var buf [24]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("quorum: generate approval token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// Outcome is the result of submitting a single signer's decision.
type Outcome struct {
	Status    string
	Promoted  bool
	Approvals int64
	Rejected  int64
}

// Submit records one signer's decision and, if it crosses the document's
// quorum threshold, atomically promotes the command to APPROVED or
// REJECTED. It is safe to call repeatedly for the same signer and
// decision: a duplicate approval is idempotent.
func Submit(r *repo.Repository, docID, cmdID, signerAddress, decision string, nowMillis int64) (Outcome, error) {
	tally, err := r.RecordApproval(docID, cmdID, signerAddress, decision, nowMillis)
	if err != nil {
		return Outcome{}, fmt.Errorf("quorum: record approval: %w", err)
	}

	threshold, err := r.GetQuorum(docID)
	if err != nil {
		return Outcome{}, fmt.Errorf("quorum: load quorum setting: %w", err)
	}

	status, promoted, err := r.PromoteIfQuorum(docID, cmdID, threshold, nowMillis)
	if err != nil {
		return Outcome{}, fmt.Errorf("quorum: promote if quorum: %w", err)
	}
	return Outcome{
		Status:    status,
		Promoted:  promoted,
		Approvals: tally.ApproveWeight,
		Rejected:  tally.RejectWeight,
	}, nil
}

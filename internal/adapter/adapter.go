// Package adapter defines the narrow capability the engine consumes to
// read and write a document's tables. It never embeds any rendering
// concern; that belongs to whatever owns the document itself.
package adapter

import (
	"context"
	"errors"
)

// ErrRowIndexOutOfRange is returned by UpdateCommandRow when rowIndex no
// longer matches a row, e.g. a concurrent writer reshaped the sheet.
var ErrRowIndexOutOfRange = errors.New("adapter: row index out of range")

// TrackedDocument is one entry from listTrackedDocuments.
type TrackedDocument struct {
	DocID       string
	DisplayName string
}

// ConfigRow is one key/value pair from the Config table.
type ConfigRow struct {
	Key   string
	Value string
}

// CommandTableRow mirrors the Commands table's columns:
// id|command|status|approvalUrl|result|error.
type CommandTableRow struct {
	RowIndex    int
	ID          string
	Command     string
	Status      string
	ApprovalURL string
	Result      string
	Error       string
}

// BalanceRow mirrors the Balances table: location|asset|balance.
type BalanceRow struct {
	Location string
	Asset    string
	Balance  string
}

// AuditRow mirrors the Audit table: timestamp|message.
type AuditRow struct {
	TimestampISO string
	Message      string
}

// ActivityRow mirrors the Recent Activity table:
// timestamp|type|details|txRef.
type ActivityRow struct {
	TimestampISO string
	Type         string
	Details      string
	TxRef        string
}

// OrderRow mirrors the Open Orders table:
// orderId|side|price|qty|status|updatedAt|tx.
type OrderRow struct {
	OrderID   string
	Side      string
	Price     string
	Qty       string
	Status    string
	UpdatedAt string
	Tx        string
}

// SessionRow mirrors the Sessions table:
// sessionId|peerName|chains|createdAt|status.
type SessionRow struct {
	SessionID string
	PeerName  string
	Chains    string
	CreatedAt string
	Status    string
}

// ChatRow mirrors the Chat table: user|agent.
type ChatRow struct {
	RowIndex int
	User     string
	Agent    string
}

// PayoutRuleRow mirrors the Payout Rules table:
// label|recipient|amount|frequency|nextRun|lastTx|status.
type PayoutRuleRow struct {
	Label     string
	Recipient string
	Amount    string
	Frequency string
	NextRun   string
	LastTx    string
	Status    string
}

// Tables is the full set of per-document tables loaded in one pass.
type Tables struct {
	Config     []ConfigRow
	Commands   []CommandTableRow
	Balances   []BalanceRow
	Audit      []AuditRow
	Activity   []ActivityRow
	Orders     []OrderRow
	Sessions   []SessionRow
	Chat       []ChatRow
	PayoutRule []PayoutRuleRow
}

// Adapter is the capability the engine consumes. Implementers own their
// own retries and index-drift semantics: the engine treats a failure as
// retryable and never corrupts its own state on such a failure.
type Adapter interface {
	ListTrackedDocuments(ctx context.Context) ([]TrackedDocument, error)
	LoadTables(ctx context.Context, docID string) (Tables, error)

	AppendCommandRow(ctx context.Context, docID, cmdID, raw, status, url, result, errText string) error
	UpdateCommandRow(ctx context.Context, docID string, rowIndex int, updates map[string]string) error

	AppendAuditRow(ctx context.Context, docID, timestampISO, message string) error
	AppendActivityRow(ctx context.Context, docID, timestampISO, activityType, details, txRef string) error
	AppendChatReply(ctx context.Context, docID string, rowIndex int, reply string) error

	WriteConfigBatch(ctx context.Context, docID string, rows []ConfigRow) error
	WriteBalancesSnapshot(ctx context.Context, docID string, rows []BalanceRow) error
	WriteOpenOrders(ctx context.Context, docID string, rows []OrderRow) error
}

package adapter

import (
	"context"
	"sync"
)

// Memory is an in-process Adapter used for tests and local development. It
// never drops writes and never simulates index drift, so the engine's
// retry path is not exercised through it.
type Memory struct {
	mu      sync.Mutex
	docs    []TrackedDocument
	tables  map[string]*Tables
}

// NewMemory constructs an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*Tables)}
}

// Track registers a document the adapter will report back from
// ListTrackedDocuments.
func (m *Memory) Track(docID, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, TrackedDocument{DocID: docID, DisplayName: displayName})
	if _, ok := m.tables[docID]; !ok {
		m.tables[docID] = &Tables{}
	}
}

func (m *Memory) tablesFor(docID string) *Tables {
	t, ok := m.tables[docID]
	if !ok {
		t = &Tables{}
		m.tables[docID] = t
	}
	return t
}

func (m *Memory) ListTrackedDocuments(ctx context.Context) ([]TrackedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackedDocument, len(m.docs))
	copy(out, m.docs)
	return out, nil
}

func (m *Memory) LoadTables(ctx context.Context, docID string) (Tables, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tablesFor(docID), nil
}

func (m *Memory) AppendCommandRow(ctx context.Context, docID, cmdID, raw, status, url, result, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	t.Commands = append(t.Commands, CommandTableRow{
		RowIndex: len(t.Commands), ID: cmdID, Command: raw, Status: status,
		ApprovalURL: url, Result: result, Error: errText,
	})
	return nil
}

func (m *Memory) UpdateCommandRow(ctx context.Context, docID string, rowIndex int, updates map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	if rowIndex < 0 || rowIndex >= len(t.Commands) {
		return ErrRowIndexOutOfRange
	}
	row := &t.Commands[rowIndex]
	for k, v := range updates {
		switch k {
		case "status":
			row.Status = v
		case "approvalUrl":
			row.ApprovalURL = v
		case "result":
			row.Result = v
		case "error":
			row.Error = v
		}
	}
	return nil
}

func (m *Memory) AppendAuditRow(ctx context.Context, docID, timestampISO, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	t.Audit = append(t.Audit, AuditRow{TimestampISO: timestampISO, Message: message})
	return nil
}

func (m *Memory) AppendActivityRow(ctx context.Context, docID, timestampISO, activityType, details, txRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	t.Activity = append(t.Activity, ActivityRow{TimestampISO: timestampISO, Type: activityType, Details: details, TxRef: txRef})
	return nil
}

func (m *Memory) AppendChatReply(ctx context.Context, docID string, rowIndex int, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	if rowIndex < 0 || rowIndex >= len(t.Chat) {
		return ErrRowIndexOutOfRange
	}
	t.Chat[rowIndex].Agent = reply
	return nil
}

// SeedChat appends a new user chat row for tests and local development;
// a real document adapter receives these directly from the user, not the
// engine, so this has no counterpart on the Adapter interface.
func (m *Memory) SeedChat(docID, user string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tablesFor(docID)
	idx := len(t.Chat)
	t.Chat = append(t.Chat, ChatRow{RowIndex: idx, User: user})
	return idx
}

func (m *Memory) WriteConfigBatch(ctx context.Context, docID string, rows []ConfigRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablesFor(docID).Config = rows
	return nil
}

func (m *Memory) WriteBalancesSnapshot(ctx context.Context, docID string, rows []BalanceRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablesFor(docID).Balances = rows
	return nil
}

func (m *Memory) WriteOpenOrders(ctx context.Context, docID string, rows []OrderRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tablesFor(docID).Orders = rows
	return nil
}

var _ Adapter = (*Memory)(nil)

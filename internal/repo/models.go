// Package repo is the Repository: a transactional key-value façade,
// implemented over gorm, providing typed upsert / get / list / delete
// operations for every entity plus the two compound operations the
// command state machine depends on for correctness: RecordApproval and
// PromoteIfQuorum.
//
// Modelled on services/otc-gateway/models/models.go (gorm model shapes)
// and services/otc-gateway/server's use of
// tx.Clauses(clause.Locking{Strength: "UPDATE"}) inside db.Transaction to
// make compound reads-then-writes serialisable per row.
package repo

// Status constants for Command.
const (
	StatusInvalid          = "INVALID"
	StatusRaw              = "RAW"
	StatusPendingApproval  = "PENDING_APPROVAL"
	StatusApproved         = "APPROVED"
	StatusExecuting        = "EXECUTING"
	StatusExecuted         = "EXECUTED"
	StatusFailed           = "FAILED"
	StatusRejected         = "REJECTED"
)

// Decision constants for CommandApproval.
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// Schedule status constants.
const (
	ScheduleActive    = "ACTIVE"
	ScheduleCancelled = "CANCELLED"
)

// StateChannelSession status constants.
const (
	SessionStatusActive = "ACTIVE"
	SessionStatusClosed = "CLOSED"
)

// Document is a tracked collaborative document bound to this deployment.
type Document struct {
	DocID         string `gorm:"primaryKey"`
	DisplayName   string
	CreatedAt     int64
	PolicyName    string
	AddressesJSON string // map[chain]address, opaque to the repository
}

// DocumentSecret holds the ciphertext of a document's per-chain wallet
// private keys. Opaque to the repository; decrypted only by
// internal/keyvault using the process-wide master key.
type DocumentSecret struct {
	DocID      string `gorm:"primaryKey"`
	Ciphertext []byte
}

// Signer is a registered approver for a document.
type Signer struct {
	DocID   string `gorm:"primaryKey"`
	Address string `gorm:"primaryKey"`
	Weight  int64
}

// QuorumSetting is the minimum approve-weight required to promote a
// command out of PENDING_APPROVAL.
type QuorumSetting struct {
	DocID   string `gorm:"primaryKey"`
	Quorum  int64
}

// CommandRow is the persisted form of a Command entity.
type CommandRow struct {
	ID          string `gorm:"primaryKey"`
	DocID       string `gorm:"index"`
	RawText     string
	ParsedJSON  string
	ParseError  string
	Status      string `gorm:"index"`
	ApprovalURL string
	ResultText  string
	ErrorText   string
	ScheduleID  string // back-link to the originating Schedule, if any
	CreatedAt   int64
	UpdatedAt   int64
}

// CommandApproval records one signer's decision on one command. Unique on
// (DocID, CmdID, SignerAddress): a signer's first decision sticks.
type CommandApproval struct {
	DocID         string `gorm:"primaryKey"`
	CmdID         string `gorm:"primaryKey"`
	SignerAddress string `gorm:"primaryKey"`
	Decision      string
	CreatedAt     int64
}

// Schedule is a recurring inner command.
type Schedule struct {
	ID            string `gorm:"primaryKey"`
	DocID         string `gorm:"index"`
	InnerCommand  string
	IntervalHours int64
	NextRunAt     int64
	TotalRuns     int64
	Status        string
	LastRunAt     *int64
}

// StateChannelSession tracks a document's bound off-chain session.
type StateChannelSession struct {
	DocID           string `gorm:"primaryKey"`
	SessionID       string
	Version         int64
	Status          string
	LastSignersJSON string
}

// SessionKey is a signer's delegated attestation key for a document.
type SessionKey struct {
	DocID             string `gorm:"primaryKey"`
	SignerAddress     string `gorm:"primaryKey"`
	DelegatedPublic   string
	EncryptedPrivate  []byte
	ExpiresAt         int64
	AllowancesJSON    string
}

// CustodialWallet is the opaque handle issued by the custodial-stablecoin
// provider for a document.
type CustodialWallet struct {
	DocID            string `gorm:"primaryKey"`
	ProviderWalletID string
	Address          string
}

// Trade is appended on every executed order.
type Trade struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	DocID          string `gorm:"index"`
	Side           string
	Qty            string
	Price          string
	Notional       string
	FeeUsd         string
	RealisedPnlUsd string
	CreatedAt      int64
}

// Counter is a monotonic per-document metric.
type Counter struct {
	DocID string `gorm:"primaryKey"`
	Name  string `gorm:"primaryKey"`
	Value int64
}

// WebhookSubscription is one operator-registered delivery target for a
// document's terminal command events.
type WebhookSubscription struct {
	ID        string `gorm:"primaryKey"`
	DocID     string `gorm:"index"`
	URL       string
	Secret    string
	RateLimit int
	Active    bool
	CreatedAt int64
}

// SchemaMeta is the single-row `_meta` table schema versioning lives in.
// Migrations are forward-only: AutoMigrate only ever adds columns/tables,
// and SchemaVersion only ever increases.
type SchemaMeta struct {
	ID      int `gorm:"primaryKey"`
	Version int
}

// TableName pins SchemaMeta to the `_meta` table.
func (SchemaMeta) TableName() string { return "_meta" }

// schemaVersion is the schema version this binary expects. Bump it
// whenever a migration adds a column or table that older rows don't
// populate.
const schemaVersion = 1

func allModels() []interface{} {
	return []interface{}{
		&Document{}, &DocumentSecret{}, &Signer{}, &QuorumSetting{},
		&CommandRow{}, &CommandApproval{}, &Schedule{},
		&StateChannelSession{}, &SessionKey{}, &CustodialWallet{},
		&Trade{}, &Counter{}, &WebhookSubscription{}, &SchemaMeta{},
	}
}

package repo

import "gorm.io/gorm"

// AppendCommand inserts a freshly parsed (or invalid) command row.
func (r *Repository) AppendCommand(row CommandRow) error {
	return r.db.Create(&row).Error
}

// GetCommand returns a single command row, or ErrNotFound.
func (r *Repository) GetCommand(docID, cmdID string) (CommandRow, error) {
	var row CommandRow
	err := r.db.First(&row, "doc_id = ? AND id = ?", docID, cmdID).Error
	return row, err
}

// ExistingCommandIDs returns the set of command ids already persisted for
// a document, used by the poll loop to find newly-added rows.
func (r *Repository) ExistingCommandIDs(docID string) (map[string]bool, error) {
	var ids []string
	if err := r.db.Model(&CommandRow{}).Where("doc_id = ?", docID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ListCommandsByStatus returns every command row for a document in a given
// status, ordered by (createdAt, cmdId) ascending: the executor picks
// APPROVED commands in ascending createdAt, ties broken by cmdId.
func (r *Repository) ListCommandsByStatus(docID, status string) ([]CommandRow, error) {
	var rows []CommandRow
	err := r.db.Where("doc_id = ? AND status = ?", docID, status).
		Order("created_at asc, id asc").Find(&rows).Error
	return rows, err
}

// ListAllApprovedAcrossDocuments supports the executor loop, which walks
// every tracked document's APPROVED commands each tick.
func (r *Repository) ListAllApprovedAcrossDocuments() ([]CommandRow, error) {
	var rows []CommandRow
	err := r.db.Where("status = ?", StatusApproved).
		Order("doc_id asc, created_at asc, id asc").Find(&rows).Error
	return rows, err
}

// ListAllCommandsAcrossDocuments returns every command row regardless of
// status, used by the reconciliation report to compare repository state
// against each document's own table.
func (r *Repository) ListAllCommandsAcrossDocuments() ([]CommandRow, error) {
	var rows []CommandRow
	err := r.db.Order("doc_id asc, created_at asc, id asc").Find(&rows).Error
	return rows, err
}

// UpdateCommandFields applies a partial update to a command row, bumping
// UpdatedAt. It does not check the current status; callers that need a
// guarded transition should use CompareAndSwapStatus.
func (r *Repository) UpdateCommandFields(docID, cmdID string, updates map[string]interface{}, now int64) error {
	updates["updated_at"] = now
	return r.db.Model(&CommandRow{}).
		Where("doc_id = ? AND id = ?", docID, cmdID).
		Updates(updates).Error
}

// CompareAndSwapStatus atomically moves a command from one status to
// another, returning whether this call won the race. APPROVED→EXECUTING
// is taken exactly once, by a compare-and-swap on the status field;
// losers spin without retrying the action.
func (r *Repository) CompareAndSwapStatus(docID, cmdID, from, to string, now int64) (bool, error) {
	won := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&CommandRow{}).
			Where("doc_id = ? AND id = ? AND status = ?", docID, cmdID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		won = result.RowsAffected == 1
		return nil
	})
	return won, err
}

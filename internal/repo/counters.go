package repo

import "gorm.io/gorm"

// Well-known counter names.
const (
	CounterApprovalsTotal     = "approvals_total"
	CounterApprovalTxAvoided  = "approval_tx_avoided"
	CounterCommandsExecuted   = "commands_executed"
)

// IncrCounter atomically increments a named counter and returns its new
// value.
func (r *Repository) IncrCounter(docID, name string, delta int64) (int64, error) {
	var value int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Counter{}).
			Where("doc_id = ? AND name = ?", docID, name).
			Update("value", gorm.Expr("value + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&Counter{DocID: docID, Name: name, Value: delta}).Error; err != nil {
				return err
			}
		}
		var c Counter
		if err := tx.First(&c, "doc_id = ? AND name = ?", docID, name).Error; err != nil {
			return err
		}
		value = c.Value
		return nil
	})
	return value, err
}

// GetCounter returns a named counter's value, defaulting to zero.
func (r *Repository) GetCounter(docID, name string) (int64, error) {
	var c Counter
	err := r.db.First(&c, "doc_id = ? AND name = ?", docID, name).Error
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

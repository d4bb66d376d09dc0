package repo

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tally is the running weighted approve/reject count for a command.
type Tally struct {
	ApproveWeight int64
	RejectWeight  int64
}

// RecordApproval atomically inserts an approval row (or, for a duplicate
// (docId,cmdId,signer), is a no-op) and returns the resulting tally.
// Duplicate approval is idempotent: the signer's first decision sticks,
// and a later different decision from the same signer is also a no-op,
// since the grammar gives no way to change a vote.
func (r *Repository) RecordApproval(docID, cmdID, signer, decision string, now int64) (Tally, error) {
	var tally Tally
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing CommandApproval
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&existing, "doc_id = ? AND cmd_id = ? AND signer_address = ?", docID, cmdID, signer).Error
		switch {
		case err == nil:
			// Already recorded; idempotent no-op.
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := CommandApproval{DocID: docID, CmdID: cmdID, SignerAddress: signer, Decision: decision, CreatedAt: now}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}

		t, err := tallyLocked(tx, docID, cmdID)
		if err != nil {
			return err
		}
		tally = t
		return nil
	})
	return tally, err
}

// ApprovingSigners returns the addresses that recorded an APPROVE
// decision on a command, used by the state-channel gate to collect one
// attestation per approving signer before advancing the session.
func (r *Repository) ApprovingSigners(docID, cmdID string) ([]string, error) {
	var addresses []string
	err := r.db.Model(&CommandApproval{}).
		Where("doc_id = ? AND cmd_id = ? AND decision = ?", docID, cmdID, DecisionApprove).
		Order("signer_address asc").
		Pluck("signer_address", &addresses).Error
	return addresses, err
}

func tallyLocked(tx *gorm.DB, docID, cmdID string) (Tally, error) {
	var rows []CommandApproval
	if err := tx.Where("doc_id = ? AND cmd_id = ?", docID, cmdID).Find(&rows).Error; err != nil {
		return Tally{}, err
	}
	var signers []Signer
	if err := tx.Where("doc_id = ?", docID).Find(&signers).Error; err != nil {
		return Tally{}, err
	}
	weights := make(map[string]int64, len(signers))
	for _, s := range signers {
		weights[s.Address] = s.Weight
	}
	var tally Tally
	for _, a := range rows {
		w := weights[a.SignerAddress]
		if a.Decision == DecisionApprove {
			tally.ApproveWeight += w
		} else if a.Decision == DecisionReject {
			tally.RejectWeight += w
		}
	}
	return tally, nil
}

// PromoteIfQuorum atomically reads the command's current status and
// approval tally and, if quorum has been met or definitively missed,
// transitions it. It is safe to call repeatedly; once the command has
// left PENDING_APPROVAL it is a no-op.
func (r *Repository) PromoteIfQuorum(docID, cmdID string, quorum int64, now int64) (status string, promoted bool, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		var row CommandRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "doc_id = ? AND id = ?", docID, cmdID).Error; err != nil {
			return err
		}
		if row.Status != StatusPendingApproval {
			status = row.Status
			return nil
		}

		tally, err := tallyLocked(tx, docID, cmdID)
		if err != nil {
			return err
		}
		total, err := totalWeightLocked(tx, docID)
		if err != nil {
			return err
		}

		switch {
		case tally.ApproveWeight >= quorum:
			if err := tx.Model(&CommandRow{}).
				Where("doc_id = ? AND id = ?", docID, cmdID).
				Updates(map[string]interface{}{"status": StatusApproved, "updated_at": now}).Error; err != nil {
				return err
			}
			status, promoted = StatusApproved, true
		case tally.RejectWeight > total-quorum:
			if err := tx.Model(&CommandRow{}).
				Where("doc_id = ? AND id = ?", docID, cmdID).
				Updates(map[string]interface{}{"status": StatusRejected, "updated_at": now}).Error; err != nil {
				return err
			}
			if err := tx.Where("doc_id = ? AND cmd_id = ?", docID, cmdID).Delete(&CommandApproval{}).Error; err != nil {
				return err
			}
			status, promoted = StatusRejected, true
		default:
			status, promoted = StatusPendingApproval, false
		}
		return nil
	})
	return status, promoted, err
}

func totalWeightLocked(tx *gorm.DB, docID string) (int64, error) {
	var total int64
	err := tx.Model(&Signer{}).Where("doc_id = ?", docID).
		Select("COALESCE(SUM(weight), 0)").Scan(&total).Error
	return total, err
}

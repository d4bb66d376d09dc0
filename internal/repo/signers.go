package repo

// UpsertSigner creates a signer or updates its weight, mutable through a
// SIGNER_ADD command.
func (r *Repository) UpsertSigner(docID, address string, weight int64) error {
	return r.db.Save(&Signer{DocID: docID, Address: address, Weight: weight}).Error
}

// GetSigner returns a single signer, or ErrNotFound.
func (r *Repository) GetSigner(docID, address string) (Signer, error) {
	var s Signer
	err := r.db.First(&s, "doc_id = ? AND address = ?", docID, address).Error
	return s, err
}

// ListSigners returns every signer registered for a document.
func (r *Repository) ListSigners(docID string) ([]Signer, error) {
	var signers []Signer
	err := r.db.Where("doc_id = ?", docID).Find(&signers).Error
	return signers, err
}

// TotalWeight sums every registered signer's weight for a document.
func (r *Repository) TotalWeight(docID string) (int64, error) {
	var total int64
	err := r.db.Model(&Signer{}).Where("doc_id = ?", docID).
		Select("COALESCE(SUM(weight), 0)").Scan(&total).Error
	return total, err
}

// SetQuorum sets the minimum approve-weight required for a document.
func (r *Repository) SetQuorum(docID string, quorum int64) error {
	return r.db.Save(&QuorumSetting{DocID: docID, Quorum: quorum}).Error
}

// GetQuorum returns the configured minimum sum of signer weights for a
// document, defaulting to 1: an untracked document behaves as a
// single-signer deployment until QUORUM is set.
func (r *Repository) GetQuorum(docID string) (int64, error) {
	var q QuorumSetting
	err := r.db.First(&q, "doc_id = ?", docID).Error
	if isNotFound(err) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return q.Quorum, nil
}

package repo

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertStateChannelSession creates or replaces a document's bound
// session.
func (r *Repository) UpsertStateChannelSession(s StateChannelSession) error {
	return r.db.Save(&s).Error
}

// GetStateChannelSession returns a document's session, or ErrNotFound.
func (r *Repository) GetStateChannelSession(docID string) (StateChannelSession, error) {
	var s StateChannelSession
	err := r.db.First(&s, "doc_id = ?", docID).Error
	return s, err
}

// BumpSessionVersion atomically advances a session's version by one and
// returns the new value; every state-channel command bumps it
// monotonically.
func (r *Repository) BumpSessionVersion(docID string) (int64, error) {
	var next int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var s StateChannelSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&s, "doc_id = ?", docID).Error; err != nil {
			return err
		}
		next = s.Version + 1
		return tx.Model(&StateChannelSession{}).
			Where("doc_id = ?", docID).Update("version", next).Error
	})
	return next, err
}

// UpsertSessionKey creates or replaces a signer's delegated session key.
func (r *Repository) UpsertSessionKey(k SessionKey) error {
	return r.db.Save(&k).Error
}

// GetSessionKey returns a signer's session key, or ErrNotFound.
func (r *Repository) GetSessionKey(docID, signer string) (SessionKey, error) {
	var k SessionKey
	err := r.db.First(&k, "doc_id = ? AND signer_address = ?", docID, signer).Error
	return k, err
}

// UpsertCustodialWallet records the opaque custodial-provider handle for a
// document.
func (r *Repository) UpsertCustodialWallet(w CustodialWallet) error {
	return r.db.Save(&w).Error
}

// GetCustodialWallet returns a document's custodial wallet handle, or
// ErrNotFound.
func (r *Repository) GetCustodialWallet(docID string) (CustodialWallet, error) {
	var w CustodialWallet
	err := r.db.First(&w, "doc_id = ?", docID).Error
	return w, err
}

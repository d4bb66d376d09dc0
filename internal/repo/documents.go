package repo

// UpsertDocument inserts or updates a tracked document.
func (r *Repository) UpsertDocument(doc Document) error {
	return r.db.Save(&doc).Error
}

// GetDocument returns a single document, or ErrNotFound.
func (r *Repository) GetDocument(docID string) (Document, error) {
	var doc Document
	err := r.db.First(&doc, "doc_id = ?", docID).Error
	return doc, err
}

// ListDocuments returns every tracked document.
func (r *Repository) ListDocuments() ([]Document, error) {
	var docs []Document
	err := r.db.Find(&docs).Error
	return docs, err
}

// UpsertDocumentSecret stores the ciphertext of a document's wallet keys.
func (r *Repository) UpsertDocumentSecret(docID string, ciphertext []byte) error {
	return r.db.Save(&DocumentSecret{DocID: docID, Ciphertext: ciphertext}).Error
}

// GetDocumentSecret returns a document's wallet-key ciphertext.
func (r *Repository) GetDocumentSecret(docID string) (DocumentSecret, error) {
	var secret DocumentSecret
	err := r.db.First(&secret, "doc_id = ?", docID).Error
	return secret, err
}

package repo

// AppendTrade records an executed order, appended on every fill.
func (r *Repository) AppendTrade(t Trade) error {
	return r.db.Create(&t).Error
}

// ListTrades returns a document's trade history, most recent first.
func (r *Repository) ListTrades(docID string) ([]Trade, error) {
	var rows []Trade
	err := r.db.Where("doc_id = ?", docID).Order("created_at desc").Find(&rows).Error
	return rows, err
}

package repo

// UpsertWebhookSubscription creates or replaces a document's delivery
// target for terminal command events.
func (r *Repository) UpsertWebhookSubscription(sub WebhookSubscription) error {
	return r.db.Save(&sub).Error
}

// ListWebhookSubscriptions returns every subscription registered for a
// document, active or not.
func (r *Repository) ListWebhookSubscriptions(docID string) ([]WebhookSubscription, error) {
	var subs []WebhookSubscription
	err := r.db.Where("doc_id = ?", docID).Find(&subs).Error
	return subs, err
}

// DeactivateWebhookSubscription stops further deliveries without losing
// the subscription's delivery history.
func (r *Repository) DeactivateWebhookSubscription(id string) error {
	return r.db.Model(&WebhookSubscription{}).Where("id = ?", id).Update("active", false).Error
}

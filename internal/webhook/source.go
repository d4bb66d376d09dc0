package webhook

import (
	"context"

	"dwagent/internal/repo"
)

// RepoSubscriptions adapts the repo's WebhookSubscription table to
// SubscriptionSource.
type RepoSubscriptions struct {
	Repo *repo.Repository
}

func (s RepoSubscriptions) SubscriptionsFor(ctx context.Context, docID string) ([]Subscription, error) {
	rows, err := s.Repo.ListWebhookSubscriptions(docID)
	if err != nil {
		return nil, err
	}
	subs := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, Subscription{
			ID: row.ID, URL: row.URL, Secret: row.Secret, RateLimit: row.RateLimit, Active: row.Active,
		})
	}
	return subs, nil
}

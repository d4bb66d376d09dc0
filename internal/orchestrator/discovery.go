package orchestrator

import (
	"context"
	"fmt"

	"dwagent/internal/repo"
)

// discoveryTick asks the adapter for every document it currently exposes
// and upserts each into the repository.
func (o *Orchestrator) discoveryTick(ctx context.Context) error {
	docs, err := o.Adapter.ListTrackedDocuments(ctx)
	if err != nil {
		return fmt.Errorf("discovery: list tracked documents: %w", err)
	}
	now := o.now().UnixMilli()
	for _, d := range docs {
		doc := repo.Document{DocID: d.DocID, DisplayName: d.DisplayName, CreatedAt: now}
		if existing, err := o.Repo.GetDocument(d.DocID); err == nil {
			doc.CreatedAt = existing.CreatedAt
			doc.PolicyName = existing.PolicyName
			doc.AddressesJSON = existing.AddressesJSON
		}
		if err := o.Repo.UpsertDocument(doc); err != nil {
			return fmt.Errorf("discovery: upsert %s: %w", d.DocID, err)
		}
	}
	return nil
}

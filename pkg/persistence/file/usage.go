package file

import (
	"context"
	"sort"
	"time"

	"github.com/forgehq/forge/pkg/models"
)

const usageDir = "usage"

// UsageRepository stores one document per ledger entry. Entries are never
// rewritten or removed.
type UsageRepository struct {
	root string
}

func (r *UsageRepository) Append(_ context.Context, entry *models.UsageEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return writeEntity(r.root, usageDir, entry.ID, entry)
}

func (r *UsageRepository) ListByOrg(_ context.Context, orgID string) ([]*models.UsageEntry, error) {
	ids, err := listEntityIDs(r.root, usageDir)
	if err != nil {
		return []*models.UsageEntry{}, nil
	}

	entries := make([]*models.UsageEntry, 0, len(ids))

	for _, id := range ids {
		var entry models.UsageEntry
		if err := readEntity(r.root, usageDir, id, &entry, nil); err != nil {
			return nil, err
		}

		if entry.OrgID == orgID {
			entries = append(entries, &entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	return entries, nil
}

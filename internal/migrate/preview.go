// SPDX-License-Identifier: MPL-2.0

package migrate

import "hassctl/internal/registry"

type (
	// PreviewItem classifies one plan entry against the live registry.
	PreviewItem struct {
		OldID    string
		NewID    string
		Found    bool
		EntityID string
		// Metadata summarizes what the entry carries (empty when none).
		Metadata []string
	}

	// PreviewReport is the diff of a plan against the registry.
	PreviewReport struct {
		Items        []PreviewItem
		Found        int
		NotFound     int
		WithMetadata int
	}
)

// Preview checks each plan entry against the registry without mutating
// anything. Entries whose old unique_id matches no entity are reported as
// not found, which usually means they were already migrated.
func Preview(reg *registry.Registry, plan *Plan) *PreviewReport {
	byUniqueID := make(map[string]*registry.Entry)
	for _, e := range reg.Entities {
		byUniqueID[e.UniqueID] = e
	}

	report := &PreviewReport{}
	for _, oldID := range plan.SortedOldIDs() {
		item := PreviewItem{OldID: oldID, NewID: plan.Migrations[oldID].NewID}

		if entry, ok := byUniqueID[oldID]; ok {
			item.Found = true
			item.EntityID = entry.EntityID
			item.Metadata = entry.MetadataSummary()
			report.Found++
			if len(item.Metadata) > 0 {
				report.WithMetadata++
			}
		} else {
			report.NotFound++
		}
		report.Items = append(report.Items, item)
	}
	return report
}

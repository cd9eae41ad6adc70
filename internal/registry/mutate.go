// SPDX-License-Identifier: MPL-2.0

package registry

import "sort"

type (
	// MergeChange records one duplicate merge: the base entry's unique_id was
	// replaced by the duplicate's, and the duplicate entry removed.
	MergeChange struct {
		EntityID    string   // base entry that was kept
		OldUniqueID string   // the base entry's previous unique_id
		NewUniqueID string   // taken from the removed _2 duplicate
		Preserved   []string // metadata summary of the kept entry
	}

	// MergeResult reports all changes made by MergeDuplicates.
	MergeResult struct {
		Changes []MergeChange
		Removed int
	}

	// RemapChange records one unique_id rewrite.
	RemapChange struct {
		EntityID    string
		OldUniqueID string
		NewUniqueID string
	}

	// RemapResult reports the outcome of RemapUniqueIDs. NotFound lists
	// mapping keys that matched no entry (typically already migrated).
	RemapResult struct {
		Changes  []RemapChange
		NotFound []string
	}
)

// MergeDuplicates merges HA-generated _2 duplicates into their originals.
//
// When an automation's YAML id changes while Home Assistant is running, HA
// registers a fresh entry under "<entity_id>_2" carrying the new unique_id,
// leaving the original entry (with its area, icon and labels) orphaned.
// For every automation "X_2" whose base "X" also exists, the base entry's
// unique_id is overwritten with the duplicate's, and the duplicate removed.
// The base entry's metadata is untouched, so it survives the merge.
//
// A _2 entry without a matching base is left alone. Entries ending in _2
// that are legitimate automations (no base entry) are therefore safe.
func (r *Registry) MergeDuplicates() MergeResult {
	byEntityID := make(map[string]*Entry)
	for _, e := range r.Automations() {
		byEntityID[e.EntityID] = e
	}

	// Collect first, then mutate: removing while iterating the registry
	// slice would skip entries.
	var dups []*Entry
	for _, e := range r.Automations() {
		if !e.IsDuplicate() {
			continue
		}
		if _, ok := byEntityID[e.BaseEntityID()]; ok {
			dups = append(dups, e)
		}
	}

	var result MergeResult
	for _, dup := range dups {
		base := byEntityID[dup.BaseEntityID()]

		result.Changes = append(result.Changes, MergeChange{
			EntityID:    base.EntityID,
			OldUniqueID: base.UniqueID,
			NewUniqueID: dup.UniqueID,
			Preserved:   base.MetadataSummary(),
		})

		base.UniqueID = dup.UniqueID
		r.remove(dup)
		result.Removed++
	}

	return result
}

// RemapUniqueIDs rewrites unique_ids according to mapping (old → new).
// Entries not covered by the mapping are untouched; mapping keys that match
// no entry are reported in NotFound, sorted for stable output.
func (r *Registry) RemapUniqueIDs(mapping map[string]string) RemapResult {
	var result RemapResult

	seen := make(map[string]bool, len(mapping))
	for _, e := range r.Entities {
		newID, ok := mapping[e.UniqueID]
		if !ok {
			continue
		}
		seen[e.UniqueID] = true
		result.Changes = append(result.Changes, RemapChange{
			EntityID:    e.EntityID,
			OldUniqueID: e.UniqueID,
			NewUniqueID: newID,
		})
		e.UniqueID = newID
	}

	for old := range mapping {
		if !seen[old] {
			result.NotFound = append(result.NotFound, old)
		}
	}
	sort.Strings(result.NotFound)

	return result
}

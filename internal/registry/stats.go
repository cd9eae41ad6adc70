// SPDX-License-Identifier: MPL-2.0

package registry

import "sort"

type (
	// Stats summarizes automation metadata coverage.
	Stats struct {
		Total      int
		WithArea   int
		WithIcon   int
		WithLabels int

		// ByArea counts automations per area_id.
		ByArea map[string]int
		// MissingArea lists entity_ids of automations without an area, sorted.
		MissingArea []string
	}

	// AreaCount is one row of the per-area breakdown.
	AreaCount struct {
		AreaID string
		Count  int
	}
)

// AutomationStats computes metadata coverage over the registry's automations.
func (r *Registry) AutomationStats() Stats {
	stats := Stats{ByArea: make(map[string]int)}

	for _, e := range r.Automations() {
		stats.Total++
		if e.AreaID != "" {
			stats.WithArea++
			stats.ByArea[e.AreaID]++
		} else {
			stats.MissingArea = append(stats.MissingArea, e.EntityID)
		}
		if e.Icon != "" {
			stats.WithIcon++
		}
		if len(e.Labels) > 0 {
			stats.WithLabels++
		}
	}

	sort.Strings(stats.MissingArea)
	return stats
}

// SortedByArea returns the per-area counts sorted by descending count,
// breaking ties by area id so output is deterministic.
func (s Stats) SortedByArea() []AreaCount {
	out := make([]AreaCount, 0, len(s.ByArea))
	for id, n := range s.ByArea {
		out = append(out, AreaCount{AreaID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AreaID < out[j].AreaID
	})
	return out
}

// Percent returns n as an integer percentage of the total, 0 when empty.
func (s Stats) Percent(n int) int {
	if s.Total == 0 {
		return 0
	}
	return 100 * n / s.Total
}

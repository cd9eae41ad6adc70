// SPDX-License-Identifier: MPL-2.0

package migrate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"hassctl/internal/registry"
)

// Candidate is an automation eligible for migration: its unique_id is the
// numeric id Home Assistant assigned when the automation had none of its
// own.
type Candidate struct {
	UniqueID    string
	EntityID    string
	SuggestedID string
	HasMetadata bool
}

// Candidates collects automations with all-digit unique_ids, sorted by
// unique_id. The suggested replacement is the entity_id without its
// "automation." prefix.
func Candidates(reg *registry.Registry) []Candidate {
	var out []Candidate
	for _, e := range reg.Automations() {
		if !e.HasNumericUniqueID() {
			continue
		}
		out = append(out, Candidate{
			UniqueID:    e.UniqueID,
			EntityID:    e.EntityID,
			SuggestedID: strings.TrimPrefix(e.EntityID, registry.AutomationPrefix),
			HasMetadata: e.HasMetadata(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// WritePlan renders candidates as an editable migration plan document.
// The output parses back through LoadPlan.
func WritePlan(w io.Writer, candidates []Candidate) error {
	var b strings.Builder
	b.WriteString("# Automation ID Migration Plan\n")
	b.WriteString("# Generated from the current entity registry\n")
	b.WriteString("#\n")
	b.WriteString("# Edit 'new_id' values as desired, then run:\n")
	b.WriteString("#   hassctl migrate preview <this_file>\n")
	b.WriteString("#   hassctl migrate execute <this_file>\n")
	b.WriteString("\n")
	b.WriteString("migrations:\n")

	if len(candidates) == 0 {
		b.WriteString("  # No automations with numeric IDs found\n")
		b.WriteString("  # All automations already have descriptive IDs\n")
	}

	for _, c := range candidates {
		fmt.Fprintf(&b, "  '%s':\n", c.UniqueID)
		fmt.Fprintf(&b, "    new_id: %s\n", c.SuggestedID)
		fmt.Fprintf(&b, "    # entity_id: %s\n", c.EntityID)
		if c.HasMetadata {
			b.WriteString("    # has_metadata: true (will be preserved)\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

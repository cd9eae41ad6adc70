// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"hassctl/internal/hass"
)

// ExportOptions controls the shape of an exported metadata document.
type ExportOptions struct {
	// All includes automations without any metadata, with a placeholder
	// comment, so they can be filled in by hand.
	All bool
	// Now stamps the export header; the zero value means time.Now.
	Now time.Time
}

// Export writes automations as an annotated YAML metadata document.
// area_id lines carry the resolved area name as a trailing comment.
// Entries are sorted by entity_id. The output is a valid plan file for
// LoadPlan.
func Export(w io.Writer, entities []hass.EntityEntry, areas map[string]string, opts ExportOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	selected := make(map[string]hass.EntityEntry)
	for _, e := range entities {
		if !e.IsAutomation() {
			continue
		}
		if e.HasMetadata() || opts.All {
			selected[e.EntityID] = e
		}
	}

	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("# Home Assistant Automation Metadata\n")
	fmt.Fprintf(&b, "# Exported: %s\n", now.Format(time.RFC3339))
	if opts.All {
		b.WriteString("# Mode: ALL automations (including those without metadata)\n")
	} else {
		b.WriteString("# Mode: Only automations with existing metadata\n")
		b.WriteString("# Tip: Use --all to export ALL automations\n")
	}
	b.WriteString("#\n")
	b.WriteString("# Usage: hassctl meta apply <this_file>\n")
	b.WriteString("\n")
	b.WriteString("automations:\n")

	for _, id := range ids {
		e := selected[id]
		fmt.Fprintf(&b, "  %s:\n", id)
		switch {
		case e.HasMetadata():
			if e.Icon != "" {
				fmt.Fprintf(&b, "    icon: %s\n", e.Icon)
			}
			if e.AreaID != "" {
				name := areas[e.AreaID]
				if name == "" {
					name = "unknown"
				}
				fmt.Fprintf(&b, "    area_id: %s  # %s\n", e.AreaID, name)
			}
			if len(e.Labels) > 0 {
				fmt.Fprintf(&b, "    labels: [%s]\n", strings.Join(e.Labels, ", "))
			}
		default:
			b.WriteString("    # add area_id, icon, labels\n")
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"strings"
	"testing"
	"time"

	"hassctl/internal/hass"
)

func exportFixture() ([]hass.EntityEntry, map[string]string) {
	entities := []hass.EntityEntry{
		{EntityID: "automation.kitchen_thermostat", Icon: "mdi:thermometer", AreaID: "kitchen", Labels: []string{"climate", "thermostat"}},
		{EntityID: "automation.porch_light", AreaID: "porch"},
		{EntityID: "automation.bare"},
		{EntityID: "sensor.outdoor_temp", AreaID: "garden"},
	}
	areas := map[string]string{"kitchen": "Kitchen", "porch": "Front Porch"}
	return entities, areas
}

func TestExport(t *testing.T) {
	entities, areas := exportFixture()
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	t.Run("metadata only", func(t *testing.T) {
		var out strings.Builder
		if err := Export(&out, entities, areas, ExportOptions{Now: now}); err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		got := out.String()

		for _, want := range []string{
			"# Exported: 2026-01-07T12:00:00Z",
			"# Mode: Only automations with existing metadata",
			"automations:\n",
			"  automation.kitchen_thermostat:\n",
			"    icon: mdi:thermometer\n",
			"    area_id: kitchen  # Kitchen\n",
			"    labels: [climate, thermostat]\n",
			"    area_id: porch  # Front Porch\n",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "automation.bare") {
			t.Error("entity without metadata should be excluded")
		}
		if strings.Contains(got, "sensor.outdoor_temp") {
			t.Error("non-automation should be excluded")
		}
	})

	t.Run("all mode includes bare entries", func(t *testing.T) {
		var out strings.Builder
		if err := Export(&out, entities, areas, ExportOptions{All: true, Now: now}); err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		got := out.String()

		if !strings.Contains(got, "# Mode: ALL automations") {
			t.Error("output missing ALL-mode header")
		}
		if !strings.Contains(got, "  automation.bare:\n    # add area_id, icon, labels\n") {
			t.Errorf("output missing placeholder entry:\n%s", got)
		}
	})

	t.Run("unknown area annotated as unknown", func(t *testing.T) {
		var out strings.Builder
		orphan := []hass.EntityEntry{{EntityID: "automation.attic_fan", AreaID: "attic"}}
		if err := Export(&out, orphan, map[string]string{}, ExportOptions{Now: now}); err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		if !strings.Contains(out.String(), "area_id: attic  # unknown") {
			t.Errorf("output missing unknown annotation:\n%s", out.String())
		}
	})

	t.Run("round-trips through LoadPlan", func(t *testing.T) {
		var out strings.Builder
		if err := Export(&out, entities, areas, ExportOptions{All: true, Now: now}); err != nil {
			t.Fatalf("Export() error: %v", err)
		}
		path := writePlanFile(t, out.String())
		plan, err := LoadPlan(path)
		if err != nil {
			t.Fatalf("LoadPlan() error: %v", err)
		}
		if len(plan.Automations) != 3 {
			t.Fatalf("got %d automations, want 3", len(plan.Automations))
		}
		kitchen := plan.Automations["automation.kitchen_thermostat"]
		if kitchen.Icon != "mdi:thermometer" || kitchen.AreaID != "kitchen" || len(kitchen.Labels) != 2 {
			t.Errorf("kitchen meta = %+v", kitchen)
		}
	})
}

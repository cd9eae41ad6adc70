// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPlan(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		path := writePlanFile(t, `
automations:
  automation.kitchen_thermostat:
    icon: mdi:thermometer
    area_id: kitchen
    labels: [climate, thermostat]
  automation.porch_light:
    area_id: porch
`)
		plan, err := LoadPlan(path)
		if err != nil {
			t.Fatalf("LoadPlan() error: %v", err)
		}
		if len(plan.Automations) != 2 {
			t.Fatalf("got %d automations, want 2", len(plan.Automations))
		}

		kitchen := plan.Automations["automation.kitchen_thermostat"]
		if kitchen.Icon != "mdi:thermometer" || kitchen.AreaID != "kitchen" {
			t.Errorf("kitchen meta = %+v", kitchen)
		}
		if !reflect.DeepEqual(kitchen.Labels, []string{"climate", "thermostat"}) {
			t.Errorf("kitchen labels = %v", kitchen.Labels)
		}

		porch := plan.Automations["automation.porch_light"]
		if porch.Icon != "" || len(porch.Labels) != 0 {
			t.Errorf("porch meta = %+v, want area only", porch)
		}
	})

	t.Run("null entry decodes as empty metadata", func(t *testing.T) {
		path := writePlanFile(t, "automations:\n  automation.bare:\n")
		plan, err := LoadPlan(path)
		if err != nil {
			t.Fatalf("LoadPlan() error: %v", err)
		}
		meta, ok := plan.Automations["automation.bare"]
		if !ok {
			t.Fatal("automation.bare missing from plan")
		}
		if !meta.IsEmpty() {
			t.Errorf("meta = %+v, want empty", meta)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writePlanFile(t, "automations: [\n")
		if _, err := LoadPlan(path); err == nil {
			t.Fatal("LoadPlan() should fail on invalid YAML")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadPlan(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("LoadPlan() should fail on missing file")
		}
	})
}

func TestPlanSortedIDs(t *testing.T) {
	plan := &Plan{Automations: map[string]EntityMeta{
		"automation.c": {},
		"automation.a": {},
		"automation.b": {},
	}}
	want := []string{"automation.a", "automation.b", "automation.c"}
	if got := plan.SortedIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("SortedIDs() = %v, want %v", got, want)
	}
}

func TestPlanValidate(t *testing.T) {
	known := map[string]bool{"climate": true, "lighting": true}

	tests := []struct {
		name string
		plan Plan
		want []MissingLabels
	}{
		{
			name: "all labels exist",
			plan: Plan{Automations: map[string]EntityMeta{
				"automation.a": {Labels: []string{"climate"}},
			}},
			want: nil,
		},
		{
			name: "missing labels collected per entity",
			plan: Plan{Automations: map[string]EntityMeta{
				"automation.b": {Labels: []string{"climate", "security"}},
				"automation.a": {Labels: []string{"presence"}},
			}},
			want: []MissingLabels{
				{EntityID: "automation.a", Labels: []string{"presence"}},
				{EntityID: "automation.b", Labels: []string{"security"}},
			},
		},
		{
			name: "entries without labels ignored",
			plan: Plan{Automations: map[string]EntityMeta{
				"automation.a": {AreaID: "kitchen"},
			}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Validate(known); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		entity  string
		want    bool
		wantErr bool
	}{
		{name: "substring glob", pattern: "automation.*thermostat*", entity: "automation.kitchen_thermostat_boost", want: true},
		{name: "no match", pattern: "automation.*thermostat*", entity: "automation.porch_light", want: false},
		{name: "exact", pattern: "automation.porch_light", entity: "automation.porch_light", want: true},
		{name: "question mark", pattern: "automation.zone_?", entity: "automation.zone_3", want: true},
		{name: "malformed pattern", pattern: "automation.[", entity: "automation.x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchPattern(tt.pattern, tt.entity)
			if tt.wantErr {
				if err == nil {
					t.Fatal("MatchPattern() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("MatchPattern() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.entity, got, tt.want)
			}
		})
	}
}

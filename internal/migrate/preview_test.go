// SPDX-License-Identifier: MPL-2.0

package migrate

import "testing"

func TestPreview(t *testing.T) {
	reg := registryDoc(t,
		`{"entity_id":"automation.kitchen_thermostat","unique_id":"1704067200000","platform":"automation","area_id":"kitchen","labels":["climate"]}`,
		`{"entity_id":"automation.porch_light","unique_id":"1704067300000","platform":"automation"}`,
	)
	plan := &Plan{Migrations: map[string]Migration{
		"1704067200000": {NewID: "kitchen_thermostat"},
		"1704067300000": {NewID: "porch_light"},
		"9999999999999": {NewID: "already_migrated"},
	}}

	report := Preview(reg, plan)

	if report.Found != 2 || report.NotFound != 1 || report.WithMetadata != 1 {
		t.Fatalf("report counts = found %d, not-found %d, with-metadata %d",
			report.Found, report.NotFound, report.WithMetadata)
	}
	if len(report.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(report.Items))
	}

	// Items come back sorted by old id.
	kitchen := report.Items[0]
	if kitchen.OldID != "1704067200000" || !kitchen.Found || kitchen.EntityID != "automation.kitchen_thermostat" {
		t.Errorf("kitchen item = %+v", kitchen)
	}
	if len(kitchen.Metadata) == 0 {
		t.Error("kitchen item should carry a metadata summary")
	}

	missing := report.Items[2]
	if missing.OldID != "9999999999999" || missing.Found {
		t.Errorf("missing item = %+v", missing)
	}
	if missing.NewID != "already_migrated" {
		t.Errorf("missing item NewID = %q", missing.NewID)
	}
}

func TestPreviewMutatesNothing(t *testing.T) {
	reg := registryDoc(t,
		`{"entity_id":"automation.a","unique_id":"100","platform":"automation"}`,
	)
	plan := &Plan{Migrations: map[string]Migration{"100": {NewID: "a"}}}

	Preview(reg, plan)

	if reg.Entities[0].UniqueID != "100" {
		t.Errorf("unique_id = %q, preview must not mutate", reg.Entities[0].UniqueID)
	}
}

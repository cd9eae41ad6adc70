// SPDX-License-Identifier: MPL-2.0

// Package registry models the Home Assistant entity registry file
// (core.entity_registry) and the mutations hassctl performs on it.
//
// Registry entries carry many fields this tool does not model (device_id,
// capabilities, options, ...). Entries therefore keep their raw JSON
// alongside the typed fields, and serialization round-trips everything the
// tool did not touch.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AutomationPrefix is the entity_id prefix for automation entities.
const AutomationPrefix = "automation."

// duplicateSuffix marks registry entries Home Assistant re-created after an
// automation's YAML id changed while the original entry still existed.
const duplicateSuffix = "_2"

type (
	// Registry is a parsed core.entity_registry document.
	Registry struct {
		Version      int
		MinorVersion int
		Key          string
		Entities     []*Entry

		// dataExtra preserves data keys other than "entities"
		// (e.g. "deleted_entities") across a load/save cycle.
		dataExtra map[string]json.RawMessage
	}

	// Entry is a single entity registry entry. Typed fields are extracted at
	// parse time; the raw form is kept for lossless re-serialization.
	Entry struct {
		EntityID string
		UniqueID string
		Platform string
		AreaID   string
		Icon     string
		Labels   []string

		raw map[string]json.RawMessage
	}

	registryDoc struct {
		Version      int                        `json:"version"`
		MinorVersion int                        `json:"minor_version"`
		Key          string                     `json:"key"`
		Data         map[string]json.RawMessage `json:"data"`
	}
)

// Parse decodes and validates a core.entity_registry document.
func Parse(data []byte) (*Registry, error) {
	var doc registryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid registry JSON: %w", err)
	}

	if doc.Data == nil {
		return nil, fmt.Errorf("invalid registry: missing data section")
	}
	entitiesRaw, ok := doc.Data["entities"]
	if !ok {
		return nil, fmt.Errorf("invalid registry: missing data.entities")
	}

	var entities []*Entry
	if err := json.Unmarshal(entitiesRaw, &entities); err != nil {
		return nil, fmt.Errorf("invalid registry entities: %w", err)
	}

	extra := make(map[string]json.RawMessage, len(doc.Data)-1)
	for k, v := range doc.Data {
		if k != "entities" {
			extra[k] = v
		}
	}

	return &Registry{
		Version:      doc.Version,
		MinorVersion: doc.MinorVersion,
		Key:          doc.Key,
		Entities:     entities,
		dataExtra:    extra,
	}, nil
}

// LoadFile reads and parses a registry file from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Encode serializes the registry back to JSON.
func (r *Registry) Encode() ([]byte, error) {
	entities, err := json.Marshal(r.Entities)
	if err != nil {
		return nil, fmt.Errorf("encoding entities: %w", err)
	}

	data := make(map[string]json.RawMessage, len(r.dataExtra)+1)
	for k, v := range r.dataExtra {
		data[k] = v
	}
	data["entities"] = entities

	return json.Marshal(registryDoc{
		Version:      r.Version,
		MinorVersion: r.MinorVersion,
		Key:          r.Key,
		Data:         data,
	})
}

// WriteFile serializes the registry and writes it to path.
func (r *Registry) WriteFile(path string) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Automations returns all automation entries, in document order.
func (r *Registry) Automations() []*Entry {
	var out []*Entry
	for _, e := range r.Entities {
		if e.IsAutomation() {
			out = append(out, e)
		}
	}
	return out
}

// remove deletes the given entry from the registry (identity comparison).
func (r *Registry) remove(target *Entry) {
	for i, e := range r.Entities {
		if e == target {
			r.Entities = append(r.Entities[:i], r.Entities[i+1:]...)
			return
		}
	}
}

// --- Entry ---

// UnmarshalJSON decodes an entry, keeping the raw field set for round-tripping.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.raw = raw

	// Optional fields are null (not absent) in Home Assistant storage files;
	// json.Unmarshal of null into a string or slice leaves the zero value.
	fields := map[string]any{
		"entity_id": &e.EntityID,
		"unique_id": &e.UniqueID,
		"platform":  &e.Platform,
		"area_id":   &e.AreaID,
		"icon":      &e.Icon,
		"labels":    &e.Labels,
	}
	for key, dst := range fields {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("entry field %s: %w", key, err)
			}
		}
	}

	if e.EntityID == "" {
		return fmt.Errorf("entry missing entity_id")
	}
	return nil
}

// MarshalJSON re-emits the raw entry with the mutable fields written back.
// unique_id is the only field hassctl rewrites in place; everything else in
// the raw form is emitted untouched.
func (e *Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.raw)+2)
	for k, v := range e.raw {
		out[k] = v
	}

	uid, err := json.Marshal(e.UniqueID)
	if err != nil {
		return nil, err
	}
	out["unique_id"] = uid

	eid, err := json.Marshal(e.EntityID)
	if err != nil {
		return nil, err
	}
	out["entity_id"] = eid

	return json.Marshal(out)
}

// IsAutomation reports whether the entry belongs to an automation.
func (e *Entry) IsAutomation() bool {
	return strings.HasPrefix(e.EntityID, AutomationPrefix)
}

// IsDuplicate reports whether the entry looks like an HA-generated duplicate
// (entity_id with a _2 suffix).
func (e *Entry) IsDuplicate() bool {
	return strings.HasSuffix(e.EntityID, duplicateSuffix)
}

// BaseEntityID returns the entity_id with the duplicate suffix stripped.
func (e *Entry) BaseEntityID() string {
	return strings.TrimSuffix(e.EntityID, duplicateSuffix)
}

// HasMetadata reports whether the entry carries any of the metadata the
// migration tooling must preserve.
func (e *Entry) HasMetadata() bool {
	return e.AreaID != "" || e.Icon != "" || len(e.Labels) > 0
}

// HasNumericUniqueID reports whether the unique_id consists only of digits.
// Home Assistant's editor assigns such ids; they are migration candidates.
func (e *Entry) HasNumericUniqueID() bool {
	if e.UniqueID == "" {
		return false
	}
	for _, r := range e.UniqueID {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MetadataSummary describes the entry's preserved metadata for display,
// e.g. ["area=kitchen", "icon", "labels=[climate thermostat]"].
func (e *Entry) MetadataSummary() []string {
	var meta []string
	if e.AreaID != "" {
		meta = append(meta, "area="+e.AreaID)
	}
	if e.Icon != "" {
		meta = append(meta, "icon")
	}
	if len(e.Labels) > 0 {
		meta = append(meta, fmt.Sprintf("labels=%v", e.Labels))
	}
	return meta
}

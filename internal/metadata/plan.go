// SPDX-License-Identifier: MPL-2.0

// Package metadata models YAML metadata plans for automations: the
// documents `meta export` writes and `meta apply` consumes.
package metadata

import (
	"os"
	"path"
	"sort"

	"hassctl/internal/issue"

	"gopkg.in/yaml.v3"
)

type (
	// EntityMeta is the editable metadata for a single automation.
	EntityMeta struct {
		Icon   string   `yaml:"icon,omitempty"`
		AreaID string   `yaml:"area_id,omitempty"`
		Labels []string `yaml:"labels,omitempty"`
	}

	// Plan is a metadata document keyed by entity_id.
	Plan struct {
		Automations map[string]EntityMeta `yaml:"automations"`
	}

	// MissingLabels records labels a plan references that do not exist
	// in the label registry.
	MissingLabels struct {
		EntityID string
		Labels   []string
	}
)

// IsEmpty reports whether the metadata carries no values.
func (m EntityMeta) IsEmpty() bool {
	return m.Icon == "" && m.AreaID == "" && len(m.Labels) == 0
}

// LoadPlan reads and parses a metadata plan file.
func LoadPlan(filePath string) (*Plan, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, issue.WrapWithContext(err, "read metadata plan", filePath)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse metadata plan").
			WithResource(filePath).
			WithSuggestion("Check the YAML syntax; see 'hassctl meta export' for the expected shape").
			Wrap(err).
			BuildError()
	}
	return &plan, nil
}

// SortedIDs returns the plan's entity_ids in lexical order.
func (p *Plan) SortedIDs() []string {
	ids := make([]string, 0, len(p.Automations))
	for id := range p.Automations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks every label the plan references against the set of
// known label IDs and collects the missing ones per entity, sorted by
// entity_id.
func (p *Plan) Validate(knownLabels map[string]bool) []MissingLabels {
	var missing []MissingLabels
	for _, id := range p.SortedIDs() {
		meta := p.Automations[id]
		var absent []string
		for _, label := range meta.Labels {
			if !knownLabels[label] {
				absent = append(absent, label)
			}
		}
		if len(absent) > 0 {
			missing = append(missing, MissingLabels{EntityID: id, Labels: absent})
		}
	}
	return missing
}

// MatchPattern reports whether an entity_id matches a shell-style glob
// pattern, e.g. "automation.*thermostat*".
func MatchPattern(pattern, entityID string) (bool, error) {
	ok, err := path.Match(pattern, entityID)
	if err != nil {
		return false, issue.NewErrorContext().
			WithOperation("match glob pattern").
			WithResource(pattern).
			WithSuggestion("Use shell-style globs, e.g. 'automation.*thermostat*'").
			Wrap(err).
			BuildError()
	}
	return ok, nil
}

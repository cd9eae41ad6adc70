// SPDX-License-Identifier: MPL-2.0

// Package migrate implements automation unique_id migration: plan files,
// candidate generation, previews, and the remote rewrite workflow.
//
// Changing an automation's YAML id while Home Assistant runs makes HA
// register a fresh "_2" entity and orphan the original entry's metadata.
// Migration rewrites unique_ids directly in the registry file while HA is
// stopped, so entity_ids and their metadata stay put.
package migrate

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"hassctl/internal/issue"

	"gopkg.in/yaml.v3"
)

type (
	// Migration is one plan entry. Plan files accept either a bare
	// scalar ("'1234': kitchen_thermostat") or a mapping with a new_id
	// key; both decode into this.
	Migration struct {
		NewID string `yaml:"new_id"`
	}

	// Plan maps old unique_ids to their replacements.
	Plan struct {
		Migrations map[string]Migration `yaml:"migrations"`
	}
)

// UnmarshalYAML accepts both the scalar and the mapping form.
func (m *Migration) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&m.NewID)
	case yaml.MappingNode:
		type plain Migration
		return node.Decode((*plain)(m))
	default:
		return fmt.Errorf("line %d: migration entry must be a string or a mapping", node.Line)
	}
}

// LoadPlan reads and parses a migration plan file. YAML numeric keys are
// decoded as their string form, so unquoted numeric unique_ids work.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.WrapWithContext(err, "read migration plan", path)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse migration plan").
			WithResource(path).
			WithSuggestion("Regenerate the plan with 'hassctl migrate generate'").
			Wrap(err).
			BuildError()
	}

	for old, m := range plan.Migrations {
		if m.NewID == "" {
			return nil, issue.NewErrorContext().
				WithOperation("parse migration plan").
				WithResource(path).
				Wrap(fmt.Errorf("entry %q has no new_id", old)).
				BuildError()
		}
	}
	return &plan, nil
}

// Mapping flattens the plan into old→new pairs.
func (p *Plan) Mapping() map[string]string {
	mapping := make(map[string]string, len(p.Migrations))
	for old, m := range p.Migrations {
		mapping[old] = m.NewID
	}
	return mapping
}

// SortedOldIDs returns the plan's old unique_ids in lexical order.
func (p *Plan) SortedOldIDs() []string {
	ids := make([]string, 0, len(p.Migrations))
	for id := range p.Migrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ErrEmptyPlan marks a plan file with no migration entries.
var ErrEmptyPlan = errors.New("no migrations defined in plan")

// Validate fails on an empty plan.
func (p *Plan) Validate() error {
	if len(p.Migrations) == 0 {
		return ErrEmptyPlan
	}
	return nil
}

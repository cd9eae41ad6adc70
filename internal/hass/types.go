// SPDX-License-Identifier: MPL-2.0

package hass

import "fmt"

type (
	// EntityEntry is an entity registry entry as returned by
	// config/entity_registry/list.
	EntityEntry struct {
		EntityID     string   `json:"entity_id"`
		UniqueID     string   `json:"unique_id"`
		Platform     string   `json:"platform"`
		AreaID       string   `json:"area_id"`
		Icon         string   `json:"icon"`
		Labels       []string `json:"labels"`
		Name         string   `json:"name"`
		OriginalName string   `json:"original_name"`
	}

	// Area is an area registry entry from config/area_registry/list.
	Area struct {
		AreaID string `json:"area_id"`
		Name   string `json:"name"`
	}

	// Label is a label registry entry from config/label_registry/list.
	Label struct {
		LabelID string `json:"label_id"`
		Name    string `json:"name"`
		Icon    string `json:"icon"`
		Color   string `json:"color"`
	}

	// EntityUpdate describes a config/entity_registry/update request.
	// Nil pointer fields are omitted, leaving the server value untouched.
	EntityUpdate struct {
		EntityID string    `json:"entity_id"`
		Icon     *string   `json:"icon,omitempty"`
		AreaID   *string   `json:"area_id,omitempty"`
		Labels   *[]string `json:"labels,omitempty"`
	}

	// APIError is the error object inside a failed WebSocket result frame.
	APIError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// Error formats the server-side failure for display.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// IsEmpty reports whether the update carries no changes.
func (u EntityUpdate) IsEmpty() bool {
	return u.Icon == nil && u.AreaID == nil && u.Labels == nil
}

// HasMetadata reports whether the entry carries any editable metadata.
func (e EntityEntry) HasMetadata() bool {
	return e.AreaID != "" || e.Icon != "" || len(e.Labels) > 0
}

// IsAutomation reports whether the entry belongs to an automation.
func (e EntityEntry) IsAutomation() bool {
	return len(e.EntityID) > len("automation.") && e.EntityID[:len("automation.")] == "automation."
}

// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name: "operation only",
			err: &ActionableError{
				Operation: "fetch registry",
			},
			expected: "failed to fetch registry",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "restore backup",
				Resource:  "entity_registry.20260107_120000.json",
			},
			expected: "failed to restore backup: entity_registry.20260107_120000.json",
		},
		{
			name: "operation with cause",
			err: &ActionableError{
				Operation: "load migration plan",
				Cause:     errors.New("yaml: line 4: mapping values are not allowed"),
			},
			expected: "failed to load migration plan: yaml: line 4: mapping values are not allowed",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "fetch registry",
				Resource:  "homeassistant.local",
				Cause:     errors.New("connection refused"),
			},
			expected: "failed to fetch registry: homeassistant.local: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ActionableError{
		Operation: "test",
		Cause:     cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap() should return the cause error")
	}

	errNoCause := &ActionableError{Operation: "test"}
	if errNoCause.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	err := &ActionableError{
		Operation: "apply metadata",
		Resource:  "automation.kitchen_thermostat",
		Suggestions: []string{
			"Create the label first: hassctl label create climate",
			"Run 'hassctl label list' to see existing labels",
		},
		Cause: errors.New("label not found"),
	}

	got := err.Format(false)
	if !strings.Contains(got, "failed to apply metadata") {
		t.Errorf("Format() missing operation: %q", got)
	}
	if !strings.Contains(got, "• Create the label first") {
		t.Errorf("Format() missing suggestion bullet: %q", got)
	}
	if strings.Contains(got, "Error chain:") {
		t.Errorf("Format(false) should not include error chain: %q", got)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") {
		t.Errorf("Format(true) should include error chain: %q", verbose)
	}
	if !strings.Contains(verbose, "1. label not found") {
		t.Errorf("Format(true) should enumerate causes: %q", verbose)
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	err := NewErrorContext().
		WithOperation("connect to Home Assistant").
		WithResource("ws://homeassistant.local:8123/api/websocket").
		WithSuggestion("Check that HASS_SERVER is correct").
		WithSuggestion("Verify Home Assistant is running").
		Wrap(cause).
		Build()

	if err == nil {
		t.Fatal("Build() returned nil with operation set")
	}
	if err.Operation != "connect to Home Assistant" {
		t.Errorf("Operation = %q", err.Operation)
	}
	if len(err.Suggestions) != 2 {
		t.Errorf("len(Suggestions) = %d, want 2", len(err.Suggestions))
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	if got := NewErrorContext().WithResource("x").Build(); got != nil {
		t.Errorf("Build() without operation = %v, want nil", got)
	}
	if got := NewErrorContext().BuildError(); got != nil {
		t.Errorf("BuildError() without operation = %v, want nil", got)
	}
}

func TestWrapHelpers(t *testing.T) {
	if WrapWithOperation(nil, "op") != nil {
		t.Error("WrapWithOperation(nil) should return nil")
	}
	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}

	cause := errors.New("boom")
	wrapped := WrapWithContext(cause, "push registry", "/tmp/registry_updated.json")
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should match cause")
	}
	want := "failed to push registry: /tmp/registry_updated.json: boom"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

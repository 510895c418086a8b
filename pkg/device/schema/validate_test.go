package schema

import (
	"encoding/json"
	"testing"
)

func TestValidate_NotifyValid(t *testing.T) {
	v := NewValidator()

	err := v.Validate(NotifySchema, map[string]any{
		"variables": map[string]any{
			"SystemUpdateID":     "12",
			"ContainerUpdateIDs": "0,12",
		},
	})
	if err != nil {
		t.Errorf("expected valid payload, got: %v", err)
	}
}

func TestValidate_NotifyEmptyVariables(t *testing.T) {
	v := NewValidator()

	err := v.Validate(NotifySchema, map[string]any{
		"variables": map[string]any{},
	})
	if err == nil {
		t.Error("expected validation error for empty variables")
	}
}

func TestValidate_NotifyNonStringValue(t *testing.T) {
	v := NewValidator()

	err := v.Validate(NotifySchema, map[string]any{
		"variables": map[string]any{"SystemUpdateID": float64(12)},
	})
	if err == nil {
		t.Error("expected validation error for numeric value")
	}
}

func TestValidate_NotifyBadVariableName(t *testing.T) {
	v := NewValidator()

	err := v.Validate(NotifySchema, map[string]any{
		"variables": map[string]any{"<bad>": "1"},
	})
	if err == nil {
		t.Error("expected validation error for variable name that is not an XML name")
	}
}

func TestValidate_NotifyMissingVariables(t *testing.T) {
	v := NewValidator()

	err := v.Validate(NotifySchema, map[string]any{})
	if err == nil {
		t.Error("expected validation error for missing variables")
	}
}

func TestValidate_SearchValid(t *testing.T) {
	v := NewValidator()

	err := v.Validate(SearchSchema, map[string]any{
		"target":          "upnp:rootdevice",
		"timeout_seconds": float64(3),
	})
	if err != nil {
		t.Errorf("expected valid payload, got: %v", err)
	}

	if err := v.Validate(SearchSchema, map[string]any{}); err != nil {
		t.Errorf("expected empty search to be valid, got: %v", err)
	}
}

func TestValidate_SearchOutOfRange(t *testing.T) {
	v := NewValidator()

	err := v.Validate(SearchSchema, map[string]any{
		"timeout_seconds": float64(120),
	})
	if err == nil {
		t.Error("expected validation error for timeout out of range")
	}
}

func TestValidate_SearchAdditionalProperty(t *testing.T) {
	v := NewValidator()

	err := v.Validate(SearchSchema, map[string]any{
		"target": "ssdp:all",
		"mx":     float64(3),
	})
	if err == nil {
		t.Error("expected validation error for additional property")
	}
}

func TestValidate_EmptySchema(t *testing.T) {
	v := NewValidator()

	for _, s := range []json.RawMessage{nil, json.RawMessage("{}"), json.RawMessage("null")} {
		if err := v.Validate(s, map[string]any{"anything": "goes"}); err != nil {
			t.Errorf("expected no error for empty schema %q, got: %v", s, err)
		}
	}
}

func TestValidate_CachesCompiledSchema(t *testing.T) {
	v := NewValidator()
	payload := map[string]any{"variables": map[string]any{"A": "1"}}

	for i := 0; i < 3; i++ {
		if err := v.Validate(NotifySchema, payload); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.compiled) != 1 {
		t.Errorf("expected 1 cached schema, got %d", len(v.compiled))
	}
}

func TestValidate_InvalidSchema(t *testing.T) {
	v := NewValidator()

	err := v.Validate(json.RawMessage(`{not json`), map[string]any{})
	if err == nil {
		t.Error("expected error for malformed schema")
	}
}

func TestValidateJSON(t *testing.T) {
	v := NewValidator()

	if err := v.ValidateJSON(SearchSchema, []byte(`{"target":"upnp:rootdevice","timeout_seconds":5}`)); err != nil {
		t.Errorf("expected valid search, got: %v", err)
	}
	if err := v.ValidateJSON(SearchSchema, []byte(`{"timeout_seconds":31}`)); err == nil {
		t.Error("expected error for timeout above maximum")
	}
	if err := v.ValidateJSON(SearchSchema, []byte(`{"target":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks admin API and MCP payloads against the documents in this
// package. Each document is compiled once.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewValidator returns a Validator with nothing compiled yet.
func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks a decoded payload. An empty, {} or null document accepts
// anything.
func (v *Validator) Validate(doc json.RawMessage, payload map[string]any) error {
	return v.check(doc, payload)
}

// ValidateJSON decodes raw and checks it. Numbers are kept as json.Number so
// integer bounds are compared exactly.
func (v *Validator) ValidateJSON(doc json.RawMessage, raw []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return v.check(doc, instance)
}

func (v *Validator) check(doc json.RawMessage, instance any) error {
	if unconstrained(doc) {
		return nil
	}
	sch, err := v.schema(doc)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch.Validate(instance)
}

func unconstrained(doc json.RawMessage) bool {
	d := string(bytes.TrimSpace(doc))
	return d == "" || d == "{}" || d == "null"
}

func (v *Validator) schema(doc json.RawMessage) (*jsonschema.Schema, error) {
	key := string(doc)

	v.mu.RLock()
	sch, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return sch, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.compiled[key]; ok {
		return sch, nil
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("payload.json", parsed); err != nil {
		return nil, err
	}
	sch, err = c.Compile("payload.json")
	if err != nil {
		return nil, err
	}
	v.compiled[key] = sch
	return sch, nil
}

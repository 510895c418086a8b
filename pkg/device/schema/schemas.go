package schema

import "encoding/json"

// NotifySchema describes a variable update pushed to a service's subscribers:
// evented variable names mapped to their string values.
var NotifySchema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"variables": {
			"type": "object",
			"minProperties": 1,
			"propertyNames": {"pattern": "^[A-Za-z_][A-Za-z0-9_.-]*$"},
			"additionalProperties": {"type": "string"}
		}
	},
	"required": ["variables"],
	"additionalProperties": false
}`)

// SearchSchema describes an M-SEARCH request.
var SearchSchema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"timeout_seconds": {"type": "number", "minimum": 1, "maximum": 30}
	},
	"additionalProperties": false
}`)

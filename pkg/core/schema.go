// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a JSON-Schema input schema from a Go struct type.
// Field names, descriptions and required markers come from the usual
// `json` and `jsonschema` struct tags, so tool inputs are declared once,
// at compile time, instead of being discovered by runtime introspection.
func SchemaFor[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	var v T
	schema := reflector.Reflect(&v)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

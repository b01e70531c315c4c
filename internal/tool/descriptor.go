// SPDX-License-Identifier: AGPL-3.0-only

// Package tool holds the provider-independent tool descriptor model and the
// MCP boundary that supplies descriptors and executes invocations against the
// remote design-tool server.
package tool

// Descriptor is a provider-agnostic description of one invocable tool.
type Descriptor struct {
	Name        string
	Description string
	// InputSchema is a JSON-Schema-shaped parameter description. Nil means
	// the tool declared no parameters.
	InputSchema map[string]interface{}
}

// EmptyObjectSchema returns a permissive schema accepting an object with no
// required fields. Used whenever a tool declares no parameters.
func EmptyObjectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Schema returns the descriptor's parameter schema, substituting the
// permissive empty-object schema when none was declared.
func (d Descriptor) Schema() map[string]interface{} {
	if d.InputSchema == nil {
		return EmptyObjectSchema()
	}
	return d.InputSchema
}

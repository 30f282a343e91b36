// Package llm defines the structured-generation capability used by the
// extractor, with Anthropic, OpenAI and Ollama backends behind one interface.
package llm

import (
	"context"
	"encoding/json"
)

// ToolSchema names and describes the object a backend must produce.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"` // JSON Schema object
}

// StructuredRequest is one structured-generation call.
type StructuredRequest struct {
	System      string
	Instruction string
	Tool        ToolSchema
	MaxTokens   int // zero means the backend default
}

// StructuredGenerator returns a JSON object conforming to req.Tool, or fails.
// Calls are atomic: there is no partial result.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)

	// ModelID returns the current model identifier string.
	ModelID() string
}

// schemaMap decodes a schema for SDKs that want a map rather than raw JSON.
func schemaMap(raw json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// firstObject returns raw when it is a JSON object. Some local models wrap
// the object in prose or code fences; the outermost braces are used then.
func firstObject(raw []byte) (json.RawMessage, bool) {
	if json.Valid(raw) {
		var probe map[string]json.RawMessage
		if json.Unmarshal(raw, &probe) == nil {
			return json.RawMessage(raw), true
		}
	}
	start, end := -1, -1
	for i, b := range raw {
		if b == '{' {
			start = i
			break
		}
	}
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == '}' {
			end = i
			break
		}
	}
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := raw[start : end+1]
	var probe map[string]json.RawMessage
	if json.Unmarshal(candidate, &probe) != nil {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// Package toolhandle implements C2: parsing tool-server responses,
// separating citations from body text, and validating tool arguments and
// results against JSON schema before and after a C1 round-trip.
package toolhandle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	codeFenceRe      = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	citationMarkerRe = regexp.MustCompile(`\[\d+\]`)
	boldMarkerRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	whitespaceRunRe  = regexp.MustCompile(`\s+`)
)

// ValidationError represents a tool argument or result validation failure.
type ValidationError struct {
	Type   string // "args_invalid" | "result_invalid"
	Tool   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s validation error (%s): %s", e.Tool, e.Type, e.Detail)
}

// ToolSchema is a tool's declared input/output JSON schema. Either field
// may be empty, in which case that side of validation always passes.
type ToolSchema struct {
	InputSchema  string
	OutputSchema string
}

// Handle implements C2's pure-over-its-inputs operations, plus the
// delegated tool_call RPC in HandleToolCall.
type Handle struct {
	caller func(rawJSONRPC string) (map[string]interface{}, error)

	cache map[string]*gojsonschema.Schema
}

// New returns a Handle that delegates tool_call to caller (typically
// rpcclient.Client.ToolCall).
func New(caller func(rawJSONRPC string) (map[string]interface{}, error)) *Handle {
	return &Handle{
		caller: caller,
		cache:  make(map[string]*gojsonschema.Schema),
	}
}

// HandleToolCall strips code-fence markers around a JSON body, delegates
// to C1, and extracts result.content[0].text when present. On any failure
// it returns the input unchanged.
func (h *Handle) HandleToolCall(text string) string {
	stripped := stripCodeFence(text)

	resp, err := h.caller(stripped)
	if err != nil || resp == nil {
		return text
	}

	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		return text
	}
	content, ok := result["content"].([]interface{})
	if !ok || len(content) == 0 {
		return text
	}
	first, ok := content[0].(map[string]interface{})
	if !ok {
		return text
	}
	if t, ok := first["text"].(string); ok {
		return t
	}
	return text
}

// Parse splits text once at "Citations:", returning the cleaned body
// (citation markers and bold markers removed, whitespace runs collapsed)
// and the citations block (including the "Citations:" prefix, or empty).
func Parse(text string) (body string, citations string) {
	idx := strings.Index(text, "Citations:")
	if idx == -1 {
		return cleanBody(text), ""
	}
	return cleanBody(text[:idx]), strings.TrimSpace(text[idx:])
}

func cleanBody(s string) string {
	s = citationMarkerRe.ReplaceAllString(s, "")
	s = boldMarkerRe.ReplaceAllString(s, "$1")
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ValidateArgs validates args (raw JSON) against tool's declared input
// schema. A tool with no declared schema always passes.
func (h *Handle) ValidateArgs(toolName string, schema ToolSchema, args json.RawMessage) error {
	if schema.InputSchema == "" {
		return nil
	}
	return h.validate(toolName, "args_invalid", schema.InputSchema, args)
}

// ValidateResult validates result (raw JSON) against tool's declared
// output schema. A tool with no declared schema always passes.
func (h *Handle) ValidateResult(toolName string, schema ToolSchema, result json.RawMessage) error {
	if schema.OutputSchema == "" {
		return nil
	}
	return h.validate(toolName, "result_invalid", schema.OutputSchema, result)
}

func (h *Handle) validate(toolName, kind, schemaJSON string, data json.RawMessage) error {
	schema, err := h.getSchema(schemaJSON)
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", toolName, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error for tool %s: %w", toolName, err)
	}
	if !result.Valid() {
		var details []string
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return &ValidationError{Type: kind, Tool: toolName, Detail: strings.Join(details, "; ")}
	}
	return nil
}

func (h *Handle) getSchema(schemaJSON string) (*gojsonschema.Schema, error) {
	if s, ok := h.cache[schemaJSON]; ok {
		return s, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	h.cache[schemaJSON] = schema
	return schema, nil
}

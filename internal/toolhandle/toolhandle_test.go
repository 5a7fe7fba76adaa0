package toolhandle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsCitations(t *testing.T) {
	body, citations := Parse("Body text [1] **x**. Citations: some source")
	assert.Equal(t, "Body text x.", body)
	assert.Equal(t, "Citations: some source", citations)
}

func TestParseNoCitations(t *testing.T) {
	body, citations := Parse("Just plain   text with   spaces")
	assert.Equal(t, "Just plain text with spaces", body)
	assert.Empty(t, citations)
}

func TestHandleToolCallStripsCodeFence(t *testing.T) {
	var sawRaw string
	h := New(func(raw string) (map[string]interface{}, error) {
		sawRaw = raw
		return map[string]interface{}{
			"result": map[string]interface{}{
				"content": []interface{}{
					map[string]interface{}{"type": "text", "text": "final answer"},
				},
			},
		}, nil
	})

	out := h.HandleToolCall("```json\n{\"jsonrpc\":\"2.0\"}\n```")
	assert.Equal(t, "final answer", out)
	assert.Equal(t, `{"jsonrpc":"2.0"}`, sawRaw)
}

func TestHandleToolCallReturnsInputOnFailure(t *testing.T) {
	h := New(func(raw string) (map[string]interface{}, error) {
		return nil, assertError{}
	})
	out := h.HandleToolCall("unchanged")
	assert.Equal(t, "unchanged", out)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestValidateArgsNoSchemaAlwaysPasses(t *testing.T) {
	h := New(nil)
	err := h.ValidateArgs("search", ToolSchema{}, json.RawMessage(`{"anything":1}`))
	require.NoError(t, err)
}

func TestValidateArgsRejectsMismatch(t *testing.T) {
	h := New(nil)
	schema := ToolSchema{InputSchema: `{"type":"object","required":["query"],"properties":{"query":{"type":"string"}}}`}

	err := h.ValidateArgs("search", schema, json.RawMessage(`{}`))
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "args_invalid", ve.Type)

	require.NoError(t, h.ValidateArgs("search", schema, json.RawMessage(`{"query":"hi"}`)))
}

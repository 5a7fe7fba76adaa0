package toolworkflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

// scriptedLLM returns queued responses (or errors) in order, one per Complete call.
type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.responses) {
		return "", errors.New("scriptedLLM: out of responses")
	}
	return s.responses[i], nil
}

func (s *scriptedLLM) Name() string { return "scripted-llm" }

type stubCaller struct {
	fail  bool
	calls int
}

func (c *stubCaller) Call(ctx context.Context, toolName string, arguments map[string]interface{}) (map[string]interface{}, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("tool server unavailable")
	}
	return map[string]interface{}{"result": map[string]interface{}{"content": []interface{}{
		map[string]interface{}{"type": "text", "text": "search results here"},
	}}}, nil
}

func jsonLine(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestDirectResponseWhenNoToolNeeded(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		jsonLine(IntentClassification{NeedsTool: false, IntentType: "none", Confidence: 0.1}),
		"a direct conversational answer",
	}}
	w := New(llm, &stubCaller{}, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "what's 2+2", "", "", "sess1", []string{"search"})
	assert.False(t, result.Usable)
	assert.Equal(t, "a direct conversational answer", result.State.FinalResponse)
}

func TestSuccessfulToolWorkflowIsUsable(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		jsonLine(IntentClassification{NeedsTool: true, IntentType: "ask", Confidence: 0.9}),
		jsonLine(ToolSelection{SelectedTool: "search", Confidence: 0.8}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q", SystemPrompt: "sp"}),
		jsonLine(ParsedResponse{Body: "body", Citations: "Citations: x", QualityScore: 0.9}),
		"final synthesized answer",
	}}
	w := New(llm, &stubCaller{}, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "search for something", "", "", "sess1", []string{"search"})
	require.True(t, result.State.ExecutionSuccess)
	assert.True(t, result.Usable)
	assert.Equal(t, "final synthesized answer", result.State.FinalResponse)
}

func TestLowQualityNotUsable(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		jsonLine(IntentClassification{NeedsTool: true, Confidence: 0.9}),
		jsonLine(ToolSelection{SelectedTool: "search"}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q"}),
		jsonLine(ParsedResponse{Body: "body", QualityScore: 0.4}),
		"synthesized but low quality",
	}}
	w := New(llm, &stubCaller{}, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "search for something", "", "", "sess1", []string{"search"})
	assert.False(t, result.Usable)
}

func TestRetryReentersOptimizeParameters(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		jsonLine(IntentClassification{NeedsTool: true, Confidence: 0.9}),
		jsonLine(ToolSelection{SelectedTool: "search"}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q1"}), // attempt 1 params
		jsonLine(ParameterOptimization{RewrittenQuery: "q2"}), // attempt 2 params (re-entered)
		jsonLine(ParsedResponse{Body: "body", QualityScore: 0.9}),
		"final answer after retry",
	}}
	caller := &failThenSucceedCaller{failCount: 1}
	w := New(llm, caller, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "search for something", "", "", "sess1", []string{"search"})
	assert.True(t, result.Usable)
	assert.Equal(t, 2, caller.calls)
	assert.Equal(t, 1, result.State.RetryCount)
}

type failThenSucceedCaller struct {
	failCount int
	calls     int
}

func (c *failThenSucceedCaller) Call(ctx context.Context, toolName string, arguments map[string]interface{}) (map[string]interface{}, error) {
	c.calls++
	if c.calls <= c.failCount {
		return nil, errors.New("transient failure")
	}
	return map[string]interface{}{"result": map[string]interface{}{}}, nil
}

func TestExhaustedRetriesProducesFallback(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		jsonLine(IntentClassification{NeedsTool: true, Confidence: 0.9}),
		jsonLine(ToolSelection{SelectedTool: "search"}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q1"}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q2"}),
		jsonLine(ParameterOptimization{RewrittenQuery: "q3"}),
	}}
	w := New(llm, &stubCaller{fail: true}, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "search for something", "", "", "sess1", []string{"search"})
	assert.False(t, result.Usable)
	assert.False(t, result.State.ExecutionSuccess)
	assert.NotEmpty(t, result.State.FinalResponse)
}

func TestClassifyIntentExceptionDefaultsToNoTool(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"not json at all", "a direct answer"}}
	w := New(llm, &stubCaller{}, 45*time.Second, 2, 0.6)

	result := w.Run(context.Background(), "anything", "", "", "sess1", nil)
	assert.False(t, result.State.IntentClassification.NeedsTool)
	assert.Equal(t, 0.0, result.State.IntentClassification.Confidence)
}

func TestWorkflowTimeout(t *testing.T) {
	llm := &scriptedLLM{}
	w := New(llm, &stubCaller{}, 1*time.Millisecond, 2, 0.6)
	w.llm = &slowLLM{}

	result := w.Run(context.Background(), "anything", "", "", "sess1", nil)
	assert.False(t, result.Usable)
}

type slowLLM struct{}

func (slowLLM) Complete(ctx context.Context, messages []orchestrator.Message) (string, error) {
	select {
	case <-time.After(time.Second):
		return "too slow", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (slowLLM) Name() string { return "slow-llm" }

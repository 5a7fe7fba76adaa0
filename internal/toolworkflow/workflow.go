// Package toolworkflow implements C6: the tool-calling workflow, a small
// explicit state machine (classify intent -> select tool -> optimize
// parameters -> execute with retry -> parse -> synthesize) layered over
// the framed-RPC tool plane. Each node is a small, individually
// cancellable step so it can be unit-tested against a scripted LLM stub.
package toolworkflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/lokutor-gateway/internal/gwerrors"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

const component = "toolworkflow"

// IntentClassification is classify_intent's output.
type IntentClassification struct {
	NeedsTool  bool    `json:"needs_tool"`
	IntentType string  `json:"intent_type"` // "ask" | "none"
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ToolSelection is select_tool's output.
type ToolSelection struct {
	SelectedTool string  `json:"selected_tool"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
}

// ParameterOptimization is optimize_parameters' output.
type ParameterOptimization struct {
	RewrittenQuery string                 `json:"rewritten_query"`
	SystemPrompt   string                 `json:"system_prompt"`
	SearchParams   map[string]interface{} `json:"search_params"`
}

// ParsedResponse is parse_response's output.
type ParsedResponse struct {
	Body         string   `json:"body"`
	Citations    string   `json:"citations"`
	QualityScore float64  `json:"quality_score"`
	Issues       []string `json:"issues"`
}

// State is the Tool-Call State threaded through every node.
type State struct {
	ID                    string
	UserQuery             string
	ConversationContext   string
	ScreenContext         string
	SessionID             string
	AvailableTools        []string
	IntentClassification  IntentClassification
	ToolSelection         ToolSelection
	ParameterOptimization ParameterOptimization
	ToolExecutionHistory  []string
	CurrentTool           string
	RetryCount            int
	MaxRetries            int
	ToolResponse          map[string]interface{}
	ParsedResponse        ParsedResponse
	FinalResponse         string
	ExecutionSuccess      bool
	QualityScore          float64
	ErrorMessages         []string
}

// Result is what C7 receives: the final state plus whether it's usable.
type Result struct {
	State   State
	Usable  bool // needs_tool && execution_success && quality_score >= threshold
}

// Caller issues a tools/call and returns the parsed response.
type Caller interface {
	Call(ctx context.Context, toolName string, arguments map[string]interface{}) (map[string]interface{}, error)
}

// Workflow runs the C6 state machine. The llm field is the LLM collaborator
// used to ask every "ask the LLM" question; askJSON unmarshals the
// response into the node's expected shape.
type Workflow struct {
	llm              orchestrator.LLMProvider
	caller           Caller
	timeout          time.Duration
	maxRetries       int
	qualityThreshold float64
}

// New returns a Workflow. timeout is the whole-workflow wall-clock
// ceiling (default from config is 45s); maxRetries is execute_tool's
// retry budget (default 2); qualityThreshold gates C7 usability
// (default 0.6).
func New(llm orchestrator.LLMProvider, caller Caller, timeout time.Duration, maxRetries int, qualityThreshold float64) *Workflow {
	return &Workflow{
		llm:              llm,
		caller:           caller,
		timeout:          timeout,
		maxRetries:       maxRetries,
		qualityThreshold: qualityThreshold,
	}
}

// Run executes the workflow end to end, respecting the wall-clock ceiling.
// On timeout it returns a non-usable Result whose ErrorMessages notes the
// exceeded wall-clock ceiling, never an error — C7 treats that as "no result" and falls
// back to the direct LLM path.
func (w *Workflow) Run(ctx context.Context, userQuery, conversationContext, screenContext, sessionID string, availableTools []string) Result {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	state := State{
		ID:                  uuid.NewString(),
		UserQuery:           userQuery,
		ConversationContext: conversationContext,
		ScreenContext:       screenContext,
		SessionID:           sessionID,
		AvailableTools:      availableTools,
		MaxRetries:          w.maxRetries,
	}

	done := make(chan Result, 1)
	go func() { done <- w.run(ctx, state) }()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		state.ErrorMessages = append(state.ErrorMessages, "workflow exceeded wall-clock ceiling")
		return Result{State: state, Usable: false}
	}
}

func (w *Workflow) run(ctx context.Context, state State) Result {
	state = w.classifyIntent(ctx, state)
	if ctx.Err() != nil {
		return Result{State: state, Usable: false}
	}

	if !state.IntentClassification.NeedsTool {
		state = w.directResponse(ctx, state)
		return w.finish(state)
	}

	state = w.selectTool(ctx, state)
	if ctx.Err() != nil {
		return Result{State: state, Usable: false}
	}

	for {
		state = w.optimizeParameters(ctx, state)
		if ctx.Err() != nil {
			return Result{State: state, Usable: false}
		}

		state = w.executeTool(ctx, state)
		if ctx.Err() != nil {
			return Result{State: state, Usable: false}
		}
		if state.ExecutionSuccess {
			break
		}
		if state.RetryCount >= state.MaxRetries {
			state = w.handleError(state)
			return w.finish(state)
		}
		// re-enter optimize_parameters, not a bare re-issue of execute_tool
	}

	state = w.parseResponse(ctx, state)
	if ctx.Err() != nil {
		return Result{State: state, Usable: false}
	}
	state = w.synthesizeResult(ctx, state)
	return w.finish(state)
}

func (w *Workflow) finish(state State) Result {
	usable := state.IntentClassification.NeedsTool &&
		state.ExecutionSuccess &&
		state.QualityScore >= w.qualityThreshold
	return Result{State: state, Usable: usable}
}

// classify_intent asks the LLM whether the query needs an external tool.
// On exception: needs_tool=false, confidence=0.
func (w *Workflow) classifyIntent(ctx context.Context, state State) State {
	prompt := fmt.Sprintf(
		"Given the conversation context:\n%s\nScreen context:\n%s\nUser query: %q\nDoes answering this require an external tool? Respond as JSON: {\"needs_tool\": bool, \"intent_type\": \"ask\"|\"none\", \"confidence\": number 0-1, \"reasoning\": string}.",
		state.ConversationContext, state.ScreenContext, state.UserQuery,
	)
	var out IntentClassification
	if err := w.askJSON(ctx, prompt, &out); err != nil {
		state.IntentClassification = IntentClassification{NeedsTool: false, Confidence: 0}
		return state
	}
	state.IntentClassification = out
	return state
}

// select_tool asks the LLM to pick one name from AvailableTools.
func (w *Workflow) selectTool(ctx context.Context, state State) State {
	prompt := fmt.Sprintf(
		"Pick exactly one tool name from this list for the query %q: %v. Respond as JSON: {\"selected_tool\": string, \"reasoning\": string, \"confidence\": number 0-1}.",
		state.UserQuery, state.AvailableTools,
	)
	var out ToolSelection
	if err := w.askJSON(ctx, prompt, &out); err != nil {
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("select_tool: %v", err))
		return state
	}
	state.ToolSelection = out
	state.CurrentTool = out.SelectedTool
	return state
}

// optimize_parameters asks the LLM to rewrite the query and produce a
// system prompt plus a JSON search-parameter object, incorporating
// screen-analysis text when available.
func (w *Workflow) optimizeParameters(ctx context.Context, state State) State {
	prompt := fmt.Sprintf(
		"Rewrite this query for the %q tool, accounting for any screen context: %q\nScreen context: %q\nRespond as JSON: {\"rewritten_query\": string, \"system_prompt\": string, \"search_params\": object}.",
		state.CurrentTool, state.UserQuery, state.ScreenContext,
	)
	var out ParameterOptimization
	if err := w.askJSON(ctx, prompt, &out); err != nil {
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("optimize_parameters: %v", err))
		state.ParameterOptimization = ParameterOptimization{RewrittenQuery: state.UserQuery}
		return state
	}
	state.ParameterOptimization = out
	return state
}

// execute_tool issues a tools/call via the caller with a system+user
// message pair. On failure, RetryCount is incremented.
func (w *Workflow) executeTool(ctx context.Context, state State) State {
	args := map[string]interface{}{
		"messages": []map[string]string{
			{"role": "system", "content": state.ParameterOptimization.SystemPrompt},
			{"role": "user", "content": state.ParameterOptimization.RewrittenQuery},
		},
	}
	if state.ParameterOptimization.SearchParams != nil {
		for k, v := range state.ParameterOptimization.SearchParams {
			args[k] = v
		}
	}

	resp, err := w.caller.Call(ctx, state.CurrentTool, args)
	state.ToolExecutionHistory = append(state.ToolExecutionHistory, state.CurrentTool)

	if err != nil {
		state.RetryCount++
		state.ExecutionSuccess = false
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("execute_tool attempt %d: %v", state.RetryCount, err))
		return state
	}
	state.ToolResponse = resp
	state.ExecutionSuccess = true
	return state
}

// parse_response asks the LLM to extract body, citations, quality score,
// and issues from the raw tool response.
func (w *Workflow) parseResponse(ctx context.Context, state State) State {
	raw, _ := json.Marshal(state.ToolResponse)
	prompt := fmt.Sprintf(
		"Extract the answer body, citations, a quality score in [0,1], and any issues from this tool response: %s. Respond as JSON: {\"body\": string, \"citations\": string, \"quality_score\": number, \"issues\": [string]}.",
		string(raw),
	)
	var out ParsedResponse
	if err := w.askJSON(ctx, prompt, &out); err != nil {
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("parse_response: %v", err))
		return state
	}
	state.ParsedResponse = out
	state.QualityScore = out.QualityScore
	return state
}

// synthesize_result asks the LLM to produce the final conversational
// answer from the parsed content, original query, conversation context,
// and screen context.
func (w *Workflow) synthesizeResult(ctx context.Context, state State) State {
	messages := []orchestrator.Message{
		{Role: "system", Content: "Synthesize a conversational answer from the tool result below."},
		{Role: "user", Content: fmt.Sprintf(
			"Original query: %s\nConversation context: %s\nScreen context: %s\nTool result body: %s\nCitations: %s",
			state.UserQuery, state.ConversationContext, state.ScreenContext, state.ParsedResponse.Body, state.ParsedResponse.Citations,
		)},
	}
	text, err := w.llm.Complete(ctx, messages)
	if err != nil {
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("synthesize_result: %v", err))
		return w.handleError(state)
	}
	state.FinalResponse = text
	return state
}

// handle_error produces a human-readable fallback using accumulated
// ErrorMessages.
func (w *Workflow) handleError(state State) State {
	state.ExecutionSuccess = false
	if len(state.ErrorMessages) == 0 {
		state.FinalResponse = "I wasn't able to complete that request."
		return state
	}
	state.FinalResponse = fmt.Sprintf("I wasn't able to complete that request (%s).", state.ErrorMessages[len(state.ErrorMessages)-1])
	return state
}

// direct_response produces a short non-tool reply; if a non-trivial
// screen analysis is present, it is referenced.
func (w *Workflow) directResponse(ctx context.Context, state State) State {
	messages := []orchestrator.Message{
		{Role: "system", Content: "Answer directly and conversationally; no tool is needed."},
		{Role: "user", Content: state.UserQuery},
	}
	if state.ScreenContext != "" {
		messages[0].Content += " Reference the screen analysis context where relevant: " + state.ScreenContext
	}
	text, err := w.llm.Complete(ctx, messages)
	if err != nil {
		state.ErrorMessages = append(state.ErrorMessages, fmt.Sprintf("direct_response: %v", err))
		state.FinalResponse = "I apologize, but I couldn't generate a response."
		return state
	}
	state.FinalResponse = text
	return state
}

// askJSON sends prompt to the LLM and unmarshals its response into out.
func (w *Workflow) askJSON(ctx context.Context, prompt string, out interface{}) error {
	text, err := w.llm.Complete(ctx, []orchestrator.Message{
		{Role: "system", Content: "Respond with a single JSON object only, no prose, no code fences."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return gwerrors.New(gwerrors.ExternalServiceFailure, component, err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return gwerrors.New(gwerrors.ProtocolError, component, fmt.Errorf("non-JSON LLM response: %w", err))
	}
	return nil
}

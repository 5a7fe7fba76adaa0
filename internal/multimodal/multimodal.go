// Package multimodal implements C7: per-turn assembly of the system
// preamble, recent dialogue, and optional screen-image analysis, then
// path selection between the tool-calling workflow (C6) and a direct LLM
// generation, finishing with post-processing and a memory append.
package multimodal

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/lokutor-ai/lokutor-gateway/internal/memory"
	"github.com/lokutor-ai/lokutor-gateway/internal/perfmon"
	"github.com/lokutor-ai/lokutor-gateway/internal/toolworkflow"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

const noScreenPreamble = "Screen sharing is currently off. Do not describe or assume any screen content."

const screenAnalysisPrompt = `Analyze this screen image and provide a concise description of what you see. Focus on:
1. Main UI elements, text, and content visible
2. Application or website being used
3. Key information that might be relevant for user assistance
4. Any error messages, notifications, or important status indicators

Describe only what is on the screen, in 2-3 sentences.`

// Turn is one inbound user utterance, with optional screen-image context.
type Turn struct {
	SessionID   string
	Text        string
	ScreenImage string // base64, optional; "" means no image attached
	Timestamp   time.Time
}

// Response is C7's output: the text to speak/display plus bookkeeping.
type Response struct {
	Text           string
	ScreenContext  string
	ProcessingTime time.Duration
	UsedTool       bool
}

// Config carries C7's tunables, mirroring the relevant internal/config
// fields so the package doesn't need to import config directly.
type Config struct {
	MaxImageSize                int
	ScreenAnalysisCacheTTL      time.Duration
	ScreenAnalysisCacheInterval time.Duration
	EnableEnhancedToolCalling   bool
	SystemPromptTemplate        string // "{tools}" is substituted with the available-tools list
}

// DefaultConfig mirrors internal/config.DefaultConfig's image-size and
// cache-TTL knobs. The cache interval defaults to 5s here, shorter than
// internal/config's 30s ScreenAnalysisInterval; cmd/gateway overrides it
// with the configured value.
func DefaultConfig() Config {
	return Config{
		MaxImageSize:                1024,
		ScreenAnalysisCacheTTL:      30 * time.Second,
		ScreenAnalysisCacheInterval: 5 * time.Second,
		EnableEnhancedToolCalling:   true,
		SystemPromptTemplate:        "You are a helpful AI assistant with enhanced reasoning capabilities. Available tools: {tools}.",
	}
}

// Orchestrator is C7. A nil workflow disables enhanced tool calling
// regardless of Config.EnableEnhancedToolCalling.
type Orchestrator struct {
	llm            orchestrator.LLMProvider
	workflow       *toolworkflow.Workflow
	memory         *memory.Store
	perf           *perfmon.Monitor
	logger         orchestrator.Logger
	cfg            Config
	availableTools []string
	cache          *screenCache
}

// New wires an Orchestrator. workflow may be nil (tool calling disabled);
// perf may be nil (no performance tracking).
func New(llm orchestrator.LLMProvider, workflow *toolworkflow.Workflow, mem *memory.Store, perf *perfmon.Monitor, logger orchestrator.Logger, cfg Config, availableTools []string) *Orchestrator {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Orchestrator{
		llm:            llm,
		workflow:       workflow,
		memory:         mem,
		perf:           perf,
		logger:         logger,
		cfg:            cfg,
		availableTools: availableTools,
		cache:          newScreenCache(cfg.ScreenAnalysisCacheTTL, cfg.ScreenAnalysisCacheInterval),
	}
}

// Process runs one full C7 turn.
func (o *Orchestrator) Process(ctx context.Context, turn Turn) (Response, error) {
	start := time.Now()

	preamble := o.buildPreamble()
	conversationContext := o.buildConversationContext(turn.SessionID, 5)
	dialogue := o.buildConversationContext(turn.SessionID, 10)

	var img image.Image
	var screenContext string
	if turn.ScreenImage != "" {
		decoded, err := decodeScreenImage(turn.ScreenImage)
		if err != nil {
			o.logger.Warn("failed to decode screen image", "error", err, "session_id", turn.SessionID)
			screenContext = "Screen context available but analysis failed"
		} else {
			img = resizeToFit(decoded, o.cfg.MaxImageSize)
			screenContext = o.analyzeScreen(ctx, turn.ScreenImage, img)
		}
	} else {
		screenContext = noScreenPreamble
	}

	userQuery := turn.Text
	if img != nil {
		userQuery = fmt.Sprintf("%s\n\nScreen context: %s", turn.Text, screenContext)
	}

	var finalText string
	usedTool := false

	if o.workflow != nil && o.cfg.EnableEnhancedToolCalling {
		result := o.workflow.Run(ctx, userQuery, conversationContext, screenContext, turn.SessionID, o.availableTools)
		if result.Usable {
			finalText = result.State.FinalResponse
			usedTool = true
		}
	}

	if finalText == "" {
		text, err := o.directGenerate(ctx, preamble, dialogue, turn.Text, screenContext, img)
		if err != nil {
			o.recordPerf(start, false)
			return Response{}, fmt.Errorf("direct generation: %w", err)
		}
		finalText = text
	}

	finalText = strings.TrimSpace(finalText)
	if finalText == "" {
		finalText = "I couldn't generate a response"
	}

	if o.memory != nil {
		now := turn.Timestamp
		if now.IsZero() {
			now = time.Now()
		}
		o.memory.AppendTurn(turn.SessionID,
			memory.Entry{Role: memory.RoleUser, Content: turn.Text, Timestamp: now, HadScreen: img != nil},
			memory.Entry{Role: memory.RoleAssistant, Content: finalText, Timestamp: now, ToolUsed: usedTool},
		)
	}

	elapsed := time.Since(start)
	o.recordPerf(start, true)

	return Response{Text: finalText, ScreenContext: screenContext, ProcessingTime: elapsed, UsedTool: usedTool}, nil
}

func (o *Orchestrator) recordPerf(start time.Time, success bool) {
	if o.perf == nil {
		return
	}
	o.perf.Record(perfmon.Sample{
		Service:   "multimodal",
		Operation: "process_conversation",
		Duration:  time.Since(start),
		Timestamp: start,
		Success:   success,
	})
}

func (o *Orchestrator) buildPreamble() string {
	toolsList := "No tools available"
	if len(o.availableTools) > 0 {
		toolsList = strings.Join(o.availableTools, ", ")
	}
	return strings.ReplaceAll(o.cfg.SystemPromptTemplate, "{tools}", toolsList)
}

// buildConversationContext renders the last n dialogue entries as
// "User: ..." / "Assistant: ..." lines, newline-joined.
func (o *Orchestrator) buildConversationContext(sessionID string, n int) string {
	if o.memory == nil {
		return ""
	}
	entries := o.memory.Recent(sessionID, n)
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case memory.RoleUser:
			parts = append(parts, "User: "+e.Content)
		case memory.RoleAssistant:
			parts = append(parts, "Assistant: "+e.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// analyzeScreen returns a short natural-language description of img,
// reusing a cached analysis when the same-sized payload was analyzed
// within the current time bucket.
func (o *Orchestrator) analyzeScreen(ctx context.Context, rawPayload string, img image.Image) string {
	now := time.Now()
	key := o.cache.bucketKey(len(rawPayload), now)
	if cached, ok := o.cache.get(key, now); ok {
		return cached
	}

	mm, ok := o.llm.(orchestrator.MultimodalLLMProvider)
	if !ok {
		return "Screen context available but AI service not initialized"
	}

	text, err := mm.CompleteWithImage(ctx, []orchestrator.Message{
		{Role: "user", Content: screenAnalysisPrompt},
	}, img)
	if err != nil {
		o.logger.Error("screen analysis failed", "error", err)
		return "Screen context available but analysis failed"
	}

	analysis := strings.TrimSpace(text)
	o.cache.set(key, analysis, now)
	return analysis
}

// directGenerate issues the fallback path: a direct LLM completion over
// the preamble, recent dialogue, and current text, with the image
// attached when the provider supports it.
func (o *Orchestrator) directGenerate(ctx context.Context, preamble, dialogue, text, screenContext string, img image.Image) (string, error) {
	userContent := text
	if dialogue != "" {
		userContent = dialogue + "\nUser: " + text
	}

	messages := []orchestrator.Message{
		{Role: "system", Content: preamble + "\n" + screenContext},
		{Role: "user", Content: userContent},
	}

	if img != nil {
		if mm, ok := o.llm.(orchestrator.MultimodalLLMProvider); ok {
			return mm.CompleteWithImage(ctx, messages, img)
		}
	}
	return o.llm.Complete(ctx, messages)
}

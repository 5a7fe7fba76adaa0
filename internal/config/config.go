// Package config extends the provider-level orchestrator.Config with the
// gateway's own session, pipeline, and tool-server knobs, and loads them
// from the environment (with .env support via godotenv in cmd/gateway).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

// Config is the full gateway configuration. Provider carries the
// teacher's original sample-rate/timeout/voice knobs; the remaining
// fields are this domain's additions.
type Config struct {
	Provider orchestrator.Config

	MaxSpeechDuration    time.Duration
	MinSpeechDuration    time.Duration
	InterFrameGapSeconds time.Duration

	MaxImageSize           int
	ScreenAnalysisCacheTTL time.Duration
	ScreenAnalysisInterval time.Duration

	ToolWorkflowTimeout time.Duration
	ToolMaxRetries      int
	QualityThreshold    float64

	STTMaxRetries int

	MaxConsecutiveSendFailures int
	MemoryCap                  int

	PerfHistoryCap    int
	PerfRollingWindow int

	// LLMProvider, STTProvider, TTSProvider select which pkg/providers
	// implementation cmd/gateway wires up (e.g. "openai", "anthropic",
	// "google", "groq", "deepgram", "assemblyai").
	LLMProvider string
	STTProvider string
	TTSProvider string

	// ToolServerCommand and ToolServerArgs describe the child process C1
	// spawns, e.g. "docker" / ["run", "--rm", "-i", "tool-server:latest"].
	ToolServerCommand string
	ToolServerArgs    []string
}

// DefaultConfig returns every numeric constant named in SPEC_FULL.md
// §3-§9, so a zero-config deployment behaves exactly as specified.
func DefaultConfig() Config {
	return Config{
		Provider: orchestrator.DefaultConfig(),

		MaxSpeechDuration:    30 * time.Second,
		MinSpeechDuration:    500 * time.Millisecond,
		InterFrameGapSeconds: 2 * time.Second,

		MaxImageSize:           1024,
		ScreenAnalysisCacheTTL: 30 * time.Second,
		ScreenAnalysisInterval: 30 * time.Second,

		ToolWorkflowTimeout: 45 * time.Second,
		ToolMaxRetries:      2,
		QualityThreshold:    0.6,

		STTMaxRetries: 3,

		MaxConsecutiveSendFailures: 3,
		MemoryCap:                  50,

		PerfHistoryCap:    1000,
		PerfRollingWindow: 100,

		LLMProvider: "openai",
		STTProvider: "openai",
		TTSProvider: "lokutor",
	}
}

// Load starts from DefaultConfig and overrides fields present in the
// environment, mirroring the teacher's env-var-driven cmd/agent setup.
func Load() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("GATEWAY_MAX_SPEECH_DURATION_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MaxSpeechDuration = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("GATEWAY_MIN_SPEECH_DURATION_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MinSpeechDuration = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("GATEWAY_MAX_IMAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxImageSize = n
		}
	}
	if v := os.Getenv("GATEWAY_TOOL_WORKFLOW_TIMEOUT_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ToolWorkflowTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := os.Getenv("GATEWAY_TOOL_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ToolMaxRetries = n
		}
	}
	if v := os.Getenv("GATEWAY_STT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.STTMaxRetries = n
		}
	}
	if v := os.Getenv("GATEWAY_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QualityThreshold = f
		}
	}
	if v := os.Getenv("GATEWAY_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = v
	}
	if v := os.Getenv("GATEWAY_STT_PROVIDER"); v != "" {
		cfg.STTProvider = v
	}
	if v := os.Getenv("GATEWAY_TTS_PROVIDER"); v != "" {
		cfg.TTSProvider = v
	}
	if v := os.Getenv("GATEWAY_TOOL_SERVER_COMMAND"); v != "" {
		cfg.ToolServerCommand = v
	}

	return cfg
}

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.MaxSpeechDuration)
	assert.Equal(t, 500*time.Millisecond, cfg.MinSpeechDuration)
	assert.Equal(t, 2*time.Second, cfg.InterFrameGapSeconds)
	assert.Equal(t, 1024, cfg.MaxImageSize)
	assert.Equal(t, 45*time.Second, cfg.ToolWorkflowTimeout)
	assert.Equal(t, 2, cfg.ToolMaxRetries)
	assert.Equal(t, 0.6, cfg.QualityThreshold)
	assert.Equal(t, 3, cfg.MaxConsecutiveSendFailures)
	assert.Equal(t, 50, cfg.MemoryCap)
	assert.Equal(t, 1000, cfg.PerfHistoryCap)
	assert.Equal(t, 100, cfg.PerfRollingWindow)
	assert.Equal(t, 44100, cfg.Provider.SampleRate)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("GATEWAY_QUALITY_THRESHOLD", "0.75")
	os.Setenv("GATEWAY_LLM_PROVIDER", "anthropic")
	defer os.Unsetenv("GATEWAY_QUALITY_THRESHOLD")
	defer os.Unsetenv("GATEWAY_LLM_PROVIDER")

	cfg := Load()
	assert.Equal(t, 0.75, cfg.QualityThreshold)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
}

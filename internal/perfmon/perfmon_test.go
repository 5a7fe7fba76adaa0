package perfmon

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptySummaryWithNoSamples(t *testing.T) {
	m := New(1000, 100)
	summary := m.Summary()
	assert.Equal(t, 0, summary.TotalSamples)
	assert.Empty(t, summary.Services)
}

func TestGoodHealth(t *testing.T) {
	m := New(1000, 100)
	for i := 0; i < 10; i++ {
		m.Record(Sample{Service: "stt", Duration: 1 * time.Second, Success: true})
	}
	summary := m.Summary()
	require.Contains(t, summary.Services, "stt")
	assert.Equal(t, HealthGood, summary.Services["stt"].Health)
	assert.Equal(t, HealthGood, summary.OverallHealth)
}

func TestPoorHealthOnLowSuccessRate(t *testing.T) {
	m := New(1000, 100)
	for i := 0; i < 10; i++ {
		m.Record(Sample{Service: "tts", Duration: 1 * time.Second, Success: i < 5})
	}
	summary := m.Summary()
	assert.Equal(t, HealthPoor, summary.Services["tts"].Health)
	assert.Equal(t, HealthPoor, summary.OverallHealth)
}

func TestFairHealthOnSlowButReliable(t *testing.T) {
	m := New(1000, 100)
	for i := 0; i < 10; i++ {
		m.Record(Sample{Service: "multimodal", Duration: 25 * time.Second, Success: true})
	}
	summary := m.Summary()
	assert.Equal(t, HealthFair, summary.Services["multimodal"].Health)
}

func TestHistoryBounded(t *testing.T) {
	m := New(5, 100)
	for i := 0; i < 20; i++ {
		m.Record(Sample{Service: "stt", Duration: time.Second, Success: true})
	}
	summary := m.Summary()
	assert.Equal(t, 5, summary.TotalSamples)
}

func TestRollingWindowBounded(t *testing.T) {
	m := New(1000, 3)
	m.Record(Sample{Service: "stt", Duration: 1 * time.Second, Success: true})
	m.Record(Sample{Service: "stt", Duration: 1 * time.Second, Success: true})
	m.Record(Sample{Service: "stt", Duration: 1 * time.Second, Success: true})
	m.Record(Sample{Service: "stt", Duration: 100 * time.Second, Success: true})
	summary := m.Summary()
	// only the last 3 durations (1,1,100) feed the average
	assert.InDelta(t, 34.0, summary.Services["stt"].AvgDuration.Seconds(), 0.5)
}

func TestTimerRecordsElapsed(t *testing.T) {
	m := New(1000, 100)
	timer := m.Timer("tts", "synthesize")
	time.Sleep(5 * time.Millisecond)
	timer.Stop(true, nil)

	summary := m.Summary()
	require.Contains(t, summary.Services, "tts")
	assert.Equal(t, 1, summary.Services["tts"].TotalRequests)
}

func TestAlertHookFiresOverThreshold(t *testing.T) {
	var fired bool
	m := New(1000, 100, WithAlertHook(func(s Sample, threshold time.Duration) {
		fired = true
	}))
	m.Record(Sample{Service: "stt", Duration: 70 * time.Second, Success: true})
	assert.True(t, fired)
}

func TestRecommendationsWithinLimitsWhenNoData(t *testing.T) {
	m := New(1000, 100)
	recs := m.Recommendations()
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "within acceptable limits")
}

func TestRecommendationsFlagsLowReliability(t *testing.T) {
	m := New(1000, 100)
	for i := 0; i < 10; i++ {
		m.Record(Sample{Service: "stt", Duration: time.Second, Success: i < 5})
	}
	recs := m.Recommendations()
	found := false
	for _, r := range recs {
		if strings.Contains(r, "reliability") {
			found = true
		}
	}
	assert.True(t, found)
}

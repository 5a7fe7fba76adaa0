// Package perfmon implements C4: per-service rolling performance
// statistics, bounded history, and threshold-derived health advisories.
// It never fails a request; thresholds are advisory only.
package perfmon

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Health is a coarse per-service status derived from success rate and
// average duration versus threshold.
type Health string

const (
	HealthGood    Health = "good"
	HealthFair    Health = "fair"
	HealthPoor    Health = "poor"
	HealthUnknown Health = "unknown"
)

// Sample is a single recorded measurement.
type Sample struct {
	Service   string
	Operation string
	Duration  time.Duration
	Timestamp time.Time
	Success   bool
	Metadata  map[string]interface{}
}

// serviceStats mirrors the source's ServiceStats dataclass.
type serviceStats struct {
	totalRequests      int
	successfulRequests int
	failedRequests     int
	minDuration        time.Duration
	maxDuration        time.Duration
	recentDurations    []time.Duration // bounded ring, cap = rollingWindow
	avgDuration        time.Duration
}

// defaultThresholds are the per-service advisory thresholds, in seconds.
var defaultThresholds = map[string]time.Duration{
	"stt":            60 * time.Second,
	"multimodal":     20 * time.Second,
	"tts":            40 * time.Second,
	"total_pipeline": 60 * time.Second,
}

// Monitor is a process-wide singleton in cmd/gateway; all methods are
// safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	maxHistory    int
	rollingWindow int
	thresholds    map[string]time.Duration

	history []Sample
	stats   map[string]*serviceStats

	onAlert func(Sample, time.Duration)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAlertHook registers a callback invoked (while not holding the lock)
// whenever a sample exceeds its service's threshold. Typically wired to a
// Logger.Warn call.
func WithAlertHook(f func(Sample, time.Duration)) Option {
	return func(m *Monitor) { m.onAlert = f }
}

// New returns a Monitor bounded by maxHistory total samples and a
// rollingWindow-sized per-service recent-duration window.
func New(maxHistory, rollingWindow int, opts ...Option) *Monitor {
	m := &Monitor{
		maxHistory:    maxHistory,
		rollingWindow: rollingWindow,
		thresholds:    defaultThresholds,
		stats:         make(map[string]*serviceStats),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record appends a sample, updates the service's rolling stats, and
// invokes the alert hook (outside the lock) if the threshold is exceeded.
func (m *Monitor) Record(s Sample) {
	var (
		alert     bool
		threshold time.Duration
	)

	m.mu.Lock()
	m.history = append(m.history, s)
	if len(m.history) > m.maxHistory {
		m.history = m.history[len(m.history)-m.maxHistory:]
	}

	stats, ok := m.stats[s.Service]
	if !ok {
		stats = &serviceStats{minDuration: time.Duration(math.MaxInt64)}
		m.stats[s.Service] = stats
	}
	stats.totalRequests++
	if s.Success {
		stats.successfulRequests++
		stats.recentDurations = append(stats.recentDurations, s.Duration)
		if len(stats.recentDurations) > m.rollingWindow {
			stats.recentDurations = stats.recentDurations[len(stats.recentDurations)-m.rollingWindow:]
		}
		if s.Duration < stats.minDuration {
			stats.minDuration = s.Duration
		}
		if s.Duration > stats.maxDuration {
			stats.maxDuration = s.Duration
		}
		stats.avgDuration = mean(stats.recentDurations)
	} else {
		stats.failedRequests++
	}

	if threshold, ok = m.thresholds[s.Service]; ok && s.Duration > threshold {
		alert = true
	}
	m.mu.Unlock()

	if alert && m.onAlert != nil {
		m.onAlert(s, threshold)
	}
}

// Timer starts a scoped timer for (service, operation); call Stop(success)
// on completion to record the sample.
func (m *Monitor) Timer(service, operation string) *Timer {
	return &Timer{m: m, service: service, operation: operation, start: time.Now()}
}

// Timer is a single in-flight measurement.
type Timer struct {
	m         *Monitor
	service   string
	operation string
	start     time.Time
}

// Stop records the elapsed duration and outcome.
func (t *Timer) Stop(success bool, metadata map[string]interface{}) {
	t.m.Record(Sample{
		Service:   t.service,
		Operation: t.operation,
		Duration:  time.Since(t.start),
		Timestamp: time.Now(),
		Success:   success,
		Metadata:  metadata,
	})
}

// ServiceSummary is one service's entry in Summary.
type ServiceSummary struct {
	TotalRequests int
	SuccessRate   float64
	AvgDuration   time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	Health        Health
}

// Summary is the full per-service health report, plus total sample count
// and overall (worst-of) health.
type Summary struct {
	TotalSamples  int
	Services      map[string]ServiceSummary
	OverallHealth Health
}

// Summary returns per-service health derived from success rate and
// avg-vs-threshold, matching performance_monitor.py's
// _get_service_health exactly.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Summary{TotalSamples: len(m.history), Services: make(map[string]ServiceSummary), OverallHealth: HealthGood}

	for name, stats := range m.stats {
		health := m.healthFor(name, stats)
		successRate := 0.0
		if stats.totalRequests > 0 {
			successRate = float64(stats.successfulRequests) / float64(stats.totalRequests)
		}
		minDuration := stats.minDuration
		if stats.successfulRequests == 0 {
			minDuration = 0
		}
		out.Services[name] = ServiceSummary{
			TotalRequests: stats.totalRequests,
			SuccessRate:   successRate,
			AvgDuration:   stats.avgDuration,
			MinDuration:   minDuration,
			MaxDuration:   stats.maxDuration,
			Health:        health,
		}
		if health == HealthPoor {
			out.OverallHealth = HealthPoor
		} else if health == HealthFair && out.OverallHealth != HealthPoor {
			out.OverallHealth = HealthFair
		}
	}

	return out
}

func (m *Monitor) healthFor(service string, stats *serviceStats) Health {
	if stats.totalRequests == 0 {
		return HealthUnknown
	}
	successRate := float64(stats.successfulRequests) / float64(stats.totalRequests)
	threshold, ok := m.thresholds[service]
	if !ok {
		threshold = 5 * time.Second
	}
	switch {
	case successRate < 0.8 || stats.avgDuration > threshold*3/2:
		return HealthPoor
	case successRate < 0.95 || stats.avgDuration > threshold:
		return HealthFair
	default:
		return HealthGood
	}
}

// Recommendations returns natural-language hints: up to two per service
// with at least 5 samples and a problem, plus a pipeline-level hint when
// the summed average latency exceeds its threshold. Returns a
// single "within acceptable limits" message if nothing is flagged.
func (m *Monitor) Recommendations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []string
	var totalAvg time.Duration

	for name, stats := range m.stats {
		totalAvg += stats.avgDuration
		if stats.totalRequests < 5 {
			continue
		}
		successRate := float64(stats.successfulRequests) / float64(stats.totalRequests)
		threshold, ok := m.thresholds[name]
		if !ok {
			threshold = 5 * time.Second
		}
		if successRate < 0.9 {
			recs = append(recs, fmt.Sprintf("Improve %s reliability (success rate: %.1f%%)", name, successRate*100))
		}
		if stats.avgDuration > threshold {
			recs = append(recs, fmt.Sprintf("Optimize %s performance (avg: %.1fs)", name, stats.avgDuration.Seconds()))
		}
	}

	if totalAvg > m.thresholds["total_pipeline"] {
		recs = append(recs, "Consider parallel processing to reduce total pipeline time")
	}
	if len(recs) == 0 {
		recs = append(recs, "Performance is within acceptable limits")
	}
	return recs
}

func mean(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

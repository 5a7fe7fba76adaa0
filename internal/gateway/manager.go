// Package gateway implements C9: the per-connection session manager
// that sits on top of the duplex channel, dispatching inbound wire
// messages to the speech accumulator (C3), the multimodal orchestrator
// (C7), and text-to-speech, while keeping a slow call in one stage from
// ever blocking another.
package gateway

import (
	"context"
	"time"

	"github.com/lokutor-ai/lokutor-gateway/internal/config"
	"github.com/lokutor-ai/lokutor-gateway/internal/multimodal"
	"github.com/lokutor-ai/lokutor-gateway/internal/perfmon"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

// stagePoolWorkers is the fixed concurrency ceiling for each of the
// three per-stage pools. A handful of concurrent calls per stage is
// plenty for a single-process gateway and keeps one runaway session
// from starving the others.
const stagePoolWorkers = 8

// Manager owns the shared dependencies every Session is built against:
// the STT/TTS providers, the C7 orchestrator, the gateway config, and
// one fixed-size worker pool per pipeline stage.
type Manager struct {
	stt    orchestrator.STTProvider
	tts    orchestrator.TTSProvider
	mm     *multimodal.Orchestrator
	perf   *perfmon.Monitor
	logger orchestrator.Logger
	cfg    config.Config

	sttPool *stagePool
	llmPool *stagePool
	ttsPool *stagePool
}

// NewManager wires a Manager. tts may be nil (text-only deployments
// skip synthesis); perf may be nil (no performance tracking).
func NewManager(stt orchestrator.STTProvider, tts orchestrator.TTSProvider, mm *multimodal.Orchestrator, perf *perfmon.Monitor, logger orchestrator.Logger, cfg config.Config) *Manager {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Manager{
		stt:    stt,
		tts:    tts,
		mm:     mm,
		perf:   perf,
		logger: logger,
		cfg:    cfg,

		sttPool: newStagePool(stagePoolWorkers),
		llmPool: newStagePool(stagePoolWorkers),
		ttsPool: newStagePool(stagePoolWorkers),
	}
}

func (m *Manager) recordPerf(service string, start time.Time, success bool) {
	if m.perf == nil {
		return
	}
	m.perf.Record(perfmon.Sample{
		Service:   service,
		Operation: "session_pipeline",
		Duration:  time.Since(start),
		Timestamp: start,
		Success:   success,
	})
}

// Serve runs one connection's session to completion, blocking until the
// client disconnects, a send-failure streak trips, or ctx is canceled.
// Callers typically invoke this in its own goroutine per accepted
// connection.
func (m *Manager) Serve(ctx context.Context, conn Conn) {
	s := newSession(ctx, conn, m)
	m.logger.Info("session started", "session_id", s.id)
	s.run()
	m.logger.Info("session ended", "session_id", s.id)
}

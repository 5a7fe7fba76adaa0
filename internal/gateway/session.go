package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lokutor-ai/lokutor-gateway/internal/multimodal"
	"github.com/lokutor-ai/lokutor-gateway/internal/screentrigger"
	"github.com/lokutor-ai/lokutor-gateway/internal/speech"
	"github.com/lokutor-ai/lokutor-gateway/pkg/audio"
)

// isDecodeError reports whether err came from the JSON layer rejecting a
// single malformed frame, as opposed to the connection itself failing.
// Only the latter should end the session.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// pendingTurn records an utterance that was deferred while waiting on a
// screen_capture_response from the client.
type pendingTurn struct {
	text      string
	timestamp float64
}

// Session is one duplex connection: one client, one accumulator, one
// echo guard, one outbound queue. All mutable state is behind mu; the
// read loop, the stage-pool callbacks, and the writer goroutine all
// touch it concurrently.
type Session struct {
	id   string
	conn Conn
	mgr  *Manager

	ctx    context.Context
	cancel context.CancelFunc

	outbound  chan interface{}
	closeOnce sync.Once

	mu               sync.Mutex
	screenShareOn    bool
	voiceAssistantOn bool
	pending          *pendingTurn
	failedSendCount  int

	accumulator *speech.Accumulator
	echo        *echoGuard
}

func newSession(parent context.Context, conn Conn, mgr *Manager) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		mgr:    mgr,
		ctx:    ctx,
		cancel: cancel,

		outbound: make(chan interface{}, 256),

		accumulator: speech.New(speech.Config{
			SampleRate:        mgr.cfg.Provider.SampleRate,
			MaxSpeechDuration: mgr.cfg.MaxSpeechDuration,
			MinSpeechDuration: mgr.cfg.MinSpeechDuration,
			InterFrameGap:     mgr.cfg.InterFrameGapSeconds,
		}),
		echo: newEchoGuard(),
	}
}

// run drives the session to completion: it blocks the caller until the
// connection closes or the parent context is canceled.
func (s *Session) run() {
	go s.writeLoop()
	defer s.Close()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		var raw json.RawMessage
		if err := s.conn.ReadJSON(s.ctx, &raw); err != nil {
			if isDecodeError(err) {
				s.send(outError{Type: "error", Message: "malformed message: " + err.Error(), Timestamp: nowSeconds()})
				continue
			}
			return
		}
		s.dispatch(raw)
	}
}

func (s *Session) dispatch(raw json.RawMessage) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.send(outError{Type: "error", Message: "malformed message: " + err.Error(), Timestamp: nowSeconds()})
		return
	}

	switch env.Type {
	case "screen_share_start":
		s.setScreenShareOn(true)
		on := true
		s.send(outSimpleState{Type: "screen_share_started", Message: "Screen sharing enabled", Timestamp: nowSeconds(), ScreenShareOn: &on})
	case "screen_share_stop":
		s.setScreenShareOn(false)
		off := false
		s.send(outSimpleState{Type: "screen_share_stopped", Message: "Screen sharing disabled", Timestamp: nowSeconds(), ScreenShareOn: &off})
	case "voice_assistant_start":
		s.setVoiceAssistantOn(true)
		s.send(outSimpleState{Type: "voice_assistant_started", Message: "Voice assistant enabled", Timestamp: nowSeconds()})
	case "voice_assistant_stop":
		s.setVoiceAssistantOn(false)
		s.send(outSimpleState{Type: "voice_assistant_stopped", Message: "Voice assistant disabled", Timestamp: nowSeconds()})
	case "audio_data":
		var msg inboundAudioData
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(outError{Type: "error", Message: "malformed audio_data: " + err.Error(), Timestamp: nowSeconds()})
			return
		}
		s.handleAudioData(msg)
	case "vad_state":
		var msg inboundVADState
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(outError{Type: "error", Message: "malformed vad_state: " + err.Error(), Timestamp: nowSeconds()})
			return
		}
		s.handleAudioData(inboundAudioData{VAD: msg.VAD, Timestamp: msg.Timestamp})
	case "screen_capture_response":
		var msg inboundScreenCaptureResponse
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(outError{Type: "error", Message: "malformed screen_capture_response: " + err.Error(), Timestamp: nowSeconds()})
			return
		}
		s.handleScreenCaptureResponse(msg)
	case "heartbeat":
		var msg inboundHeartbeat
		json.Unmarshal(raw, &msg)
		s.send(outHeartbeatPong{Type: "heartbeat_pong", Timestamp: msg.Timestamp})
	default:
		s.send(outError{Type: "error", Message: fmt.Sprintf("unknown message type: %q", env.Type), Timestamp: nowSeconds()})
	}
}

func (s *Session) setScreenShareOn(on bool) {
	s.mu.Lock()
	s.screenShareOn = on
	s.mu.Unlock()
}

func (s *Session) setVoiceAssistantOn(on bool) {
	s.mu.Lock()
	s.voiceAssistantOn = on
	s.mu.Unlock()
}

func (s *Session) screenShareOnSnapshot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenShareOn
}

// handleAudioData folds one audio frame (possibly zero-length, for a
// vad_state-only update) into the session's speech accumulator, and
// kicks off transcription on a completed chunk. It never blocks the
// read loop: transcription runs on the Manager's STT stage pool.
func (s *Session) handleAudioData(msg inboundAudioData) {
	cleaned, isEcho := s.echo.Filter(msg.Data)
	vad := speech.VADHint{IsSpeaking: msg.VAD.IsSpeaking, Energy: msg.VAD.Energy, Confidence: msg.VAD.Confidence}
	if isEcho {
		vad.IsSpeaking = false
	}

	chunk := s.accumulator.Process(cleaned, vad, msg.Timestamp)
	if chunk == nil {
		if vad.IsSpeaking {
			s.send(outSpeechActive{Type: "speech_active", Message: "listening", Timestamp: msg.Timestamp, VAD: msg.VAD})
		}
		return
	}

	screenImage := msg.ScreenImage
	s.mgr.sttPool.Submit(func() { s.transcribeAndRoute(chunk, screenImage) })
}

func (s *Session) transcribeAndRoute(chunk *speech.Chunk, screenImage string) {
	start := time.Now()
	pcm := audio.Float32ToPCM16(chunk.Data)
	text, err := transcribeWithRetry(s.ctx, s.mgr.cfg.STTMaxRetries, func() (string, error) {
		return s.mgr.stt.Transcribe(s.ctx, pcm, s.mgr.cfg.Provider.Language)
	})
	s.mgr.recordPerf("stt", start, err == nil)
	if err != nil {
		s.send(outError{Type: "error", Message: "transcription failed: " + err.Error(), Timestamp: nowSeconds()})
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.send(outTranscriptionResult{
		Type:           "transcription_result",
		Text:           text,
		Timestamp:      chunk.Timestamp,
		ProcessingTime: time.Since(start).Seconds(),
		Confidence:     1.0,
	})

	detection, shouldDefer := screentrigger.ShouldDefer(text, s.screenShareOnSnapshot())
	if shouldDefer {
		s.mu.Lock()
		s.pending = &pendingTurn{text: text, timestamp: chunk.Timestamp}
		s.mu.Unlock()

		s.send(outScreenCaptureRequest{
			Type:              "screen_capture_request",
			Confidence:        detection.Confidence,
			Reason:            string(detection.Reason),
			TriggerMatches:    detection.TriggerMatches,
			ContextMatches:    detection.ContextMatches,
			Timestamp:         nowSeconds(),
			OriginalText:      text,
			OriginalTimestamp: chunk.Timestamp,
		})
		return
	}

	s.mgr.llmPool.Submit(func() { s.runTurn(text, screenImage, chunk.Timestamp) })
}

// handleScreenCaptureResponse resumes a deferred turn once the client
// replies with the requested screen image (or confirms it has none).
func (s *Session) handleScreenCaptureResponse(msg inboundScreenCaptureResponse) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	text := msg.OriginalText
	timestamp := msg.RequestData.OriginalTimestamp
	if text == "" && pending != nil {
		text = pending.text
		timestamp = pending.timestamp
	}
	if text == "" {
		return
	}

	s.mgr.llmPool.Submit(func() { s.runTurn(text, msg.ScreenImage, timestamp) })
}

// runTurn drives C7 (reasoning) followed by C-TTS (synthesis) for one
// finished utterance, sending the text response as soon as it's ready
// and the audio response once synthesis completes.
func (s *Session) runTurn(text, screenImage string, timestamp float64) {
	start := time.Now()
	resp, err := s.mgr.mm.Process(s.ctx, multimodal.Turn{
		SessionID:   s.id,
		Text:        text,
		ScreenImage: screenImage,
		Timestamp:   time.Now(),
	})
	s.mgr.recordPerf("total_pipeline", start, err == nil)
	if err != nil {
		s.send(outError{Type: "error", Message: "reasoning failed: " + err.Error(), Timestamp: nowSeconds()})
		return
	}

	s.send(outAIResponse{
		Type:           "ai_response",
		Text:           resp.Text,
		Timestamp:      nowSeconds(),
		ProcessingTime: resp.ProcessingTime.Seconds(),
		SessionID:      s.id,
		ScreenContext:  resp.ScreenContext,
	})

	s.mgr.ttsPool.Submit(func() { s.synthesizeAndSend(resp.Text, timestamp) })
}

func (s *Session) synthesizeAndSend(text string, timestamp float64) {
	if s.mgr.tts == nil {
		return
	}
	start := time.Now()
	pcm, err := s.mgr.tts.Synthesize(s.ctx, text, s.mgr.cfg.Provider.VoiceStyle, s.mgr.cfg.Provider.Language)
	s.mgr.recordPerf("tts", start, err == nil)
	if err != nil {
		s.send(outError{Type: "error", Message: "synthesis failed: " + err.Error(), Timestamp: nowSeconds()})
		return
	}

	s.echo.RecordPlayback(pcm)
	samples := audio.PCM16ToFloat32(pcm)
	duration := float64(len(samples)) / float64(s.mgr.cfg.Provider.SampleRate)

	s.send(outAudioResponse{
		Type:           "audio_response",
		AudioData:      samples,
		SampleRate:     s.mgr.cfg.Provider.SampleRate,
		Duration:       duration,
		ProcessingTime: time.Since(start).Seconds(),
		Text:           text,
		Timestamp:      timestamp,
		SessionID:      s.id,
	})
}

// send enqueues msg for the writer goroutine. It never blocks: a full
// queue means a client that isn't draining fast enough, and dropping a
// frame beats stalling a stage-pool worker.
func (s *Session) send(msg interface{}) {
	select {
	case s.outbound <- msg:
	case <-s.ctx.Done():
	default:
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outbound:
			if err := s.conn.WriteJSON(s.ctx, msg); err != nil {
				s.mu.Lock()
				s.failedSendCount++
				n := s.failedSendCount
				s.mu.Unlock()
				if n >= s.mgr.cfg.MaxConsecutiveSendFailures {
					s.Close()
					return
				}
				continue
			}
			s.mu.Lock()
			s.failedSendCount = 0
			s.mu.Unlock()
		}
	}
}

// Close tears the session down exactly once, regardless of whether it
// was triggered by a read error, a send-failure streak, or the server
// shutting down.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
	})
}

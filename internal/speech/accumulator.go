// Package speech implements C3, the speech-session accumulator: it folds
// a stream of audio frames plus externally-supplied VAD hints into
// discrete, bounded utterances. Resampling and normalization happen at
// transcription time, not here; this package keeps raw samples.
package speech

import (
	"fmt"
	"sync"
	"time"
)

// VADHint is the per-frame voice-activity signal a client supplies
// alongside audio samples.
type VADHint struct {
	IsSpeaking bool
	Energy     float64
	Confidence float64
}

// Chunk is the immutable record emitted when a speech session completes.
type Chunk struct {
	Data       []float32
	SampleRate int
	Timestamp  float64
	ChunkID    string
}

// Config bounds a session's lifetime.
type Config struct {
	SampleRate        int
	MaxSpeechDuration time.Duration
	MinSpeechDuration time.Duration
	InterFrameGap     time.Duration
}

type session struct {
	id                 string
	startTimestamp     float64
	lastAudioTimestamp float64
	buffer             []float32
}

func (s *session) duration(sampleRate int) time.Duration {
	return time.Duration(float64(len(s.buffer)) / float64(sampleRate) * float64(time.Second))
}

// Accumulator owns at most one active session per instance; construct one
// per connection.
type Accumulator struct {
	cfg Config

	mu      sync.Mutex
	current *session
	counter int
}

// New returns an Accumulator bounded by cfg.
func New(cfg Config) *Accumulator {
	return &Accumulator{cfg: cfg}
}

// Process feeds one frame of samples (possibly empty, for a state-only
// update) plus its VAD hint and timestamp (seconds since epoch). It
// returns a Chunk when a speech session completes, or nil while still
// accumulating.
func (a *Accumulator) Process(samples []float32, vad VADHint, timestamp float64) *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()

	if vad.IsSpeaking && a.current == nil {
		a.counter++
		a.current = &session{
			id:                 fmt.Sprintf("%d_%d", int64(timestamp), a.counter),
			startTimestamp:     timestamp,
			lastAudioTimestamp: timestamp,
		}
	}

	if a.current == nil {
		return nil
	}

	a.current.buffer = append(a.current.buffer, samples...)
	gap := time.Duration((timestamp - a.current.lastAudioTimestamp) * float64(time.Second))
	a.current.lastAudioTimestamp = timestamp

	duration := a.current.duration(a.cfg.SampleRate)
	shouldComplete := !vad.IsSpeaking || duration >= a.cfg.MaxSpeechDuration || gap > a.cfg.InterFrameGap
	if !shouldComplete {
		return nil
	}
	return a.completeLocked()
}

// Flush completes the current session unconditionally, subject to the
// same minimum-duration discard rule.
func (a *Accumulator) Flush() *Chunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	return a.completeLocked()
}

func (a *Accumulator) completeLocked() *Chunk {
	s := a.current
	a.current = nil

	duration := s.duration(a.cfg.SampleRate)
	if duration < a.cfg.MinSpeechDuration {
		return nil
	}

	return &Chunk{
		Data:       s.buffer,
		SampleRate: a.cfg.SampleRate,
		Timestamp:  s.startTimestamp,
		ChunkID:    "speech_session_" + s.id,
	}
}

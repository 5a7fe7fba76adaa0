// Package orchestrator holds the provider contracts (speech-to-text,
// language-model, text-to-speech, voice-activity-detection) and the small
// set of shared value types every stage of the gateway is built against.
// The gateway itself (session handling, the tool-calling workflow, the
// speech-session accumulator, and so on) lives under internal/; this
// package only describes the boundary to the external engines behind
// those providers.
package orchestrator

import (
	"context"
	"image"
)

// Logger is the minimal structured-logging contract that the logging
// components (rpcclient, multimodal, gateway) take at construction. It is intentionally shaped like log/slog's leveled
// methods so a *slog.Logger (or any other backing) can satisfy it with a
// one-line adapter.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default for callers that don't
// want logs, so no component needs a nil check before calling its logger.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// STTProvider transcribes a single finished utterance.
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte, lang Language) (string, error)
	Name() string
}

// StreamingSTTProvider additionally supports incremental transcription over
// a live audio channel. Not every provider implements it.
type StreamingSTTProvider interface {
	STTProvider
	StreamTranscribe(ctx context.Context, lang Language, onTranscript func(transcript string, isFinal bool) error) (chan<- []byte, error)
}

// LLMProvider completes a chat-style message history.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// MultimodalLLMProvider additionally accepts a single image alongside the
// message history, for providers that support vision input. A provider
// that only implements LLMProvider is still usable everywhere a plain
// completion is needed; callers type-assert for the multimodal capability.
type MultimodalLLMProvider interface {
	LLMProvider
	CompleteWithImage(ctx context.Context, messages []Message, img image.Image) (string, error)
}

// TTSProvider synthesizes speech audio from text.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	Name() string
}

// VADProvider computes voice-activity-detection events from raw audio. The
// gateway's wire protocol normally carries client-supplied VAD hints
// directly (see internal/speech), so this interface is mainly exercised by
// local/demo clients that compute their own VAD before sending hints.
type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Reset()
	Clone() VADProvider
	Name() string
}

// VADEventType enumerates the kinds of voice-activity transitions a
// VADProvider can report.
type VADEventType string

const (
	VADSpeechStart VADEventType = "SPEECH_START"
	VADSpeechEnd   VADEventType = "SPEECH_END"
	VADSilence     VADEventType = "SILENCE"
)

// VADEvent is a single voice-activity transition.
type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

// Voice selects a synthesized voice style.
type Voice string

const (
	VoiceF1 Voice = "F1"
	VoiceF2 Voice = "F2"
	VoiceF3 Voice = "F3"
	VoiceF4 Voice = "F4"
	VoiceF5 Voice = "F5"
	VoiceM1 Voice = "M1"
	VoiceM2 Voice = "M2"
	VoiceM3 Voice = "M3"
	VoiceM4 Voice = "M4"
	VoiceM5 Voice = "M5"
)

// Language is a BCP-47-ish short language code understood by the providers.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
)

// Message is one turn in a chat-style history passed to an LLMProvider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config carries the provider-level tunables (distinct from the gateway's
// own Config in internal/config, which adds the session/pipeline knobs).
type Config struct {
	SampleRate         int
	Channels           int
	BytesPerSamp       int
	MaxContextMessages int
	VoiceStyle         Voice
	Language           Language
	STTTimeout         uint
	LLMTimeout         uint
	TTSTimeout         uint
}

// DefaultConfig returns the provider-level defaults the teacher shipped.
func DefaultConfig() Config {
	return Config{
		SampleRate:         44100,
		Channels:           1,
		BytesPerSamp:       2,
		MaxContextMessages: 20,
		VoiceStyle:         VoiceF1,
		Language:           LanguageEn,
		STTTimeout:         30,
		LLMTimeout:         60,
		TTSTimeout:         30,
	}
}

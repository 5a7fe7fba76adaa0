package gateway

import (
	"github.com/lokutor-ai/lokutor-gateway/pkg/audio"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

// echoGuard wraps the teacher's EchoSuppressor, bridging the wire
// protocol's float32 samples to the suppressor's []byte 16-bit-PCM
// expectations. One instance per session: TTS playback is recorded here
// so the next inbound audio_data frame can be checked against it before
// ever reaching C3.
type echoGuard struct {
	suppressor *orchestrator.EchoSuppressor
}

func newEchoGuard() *echoGuard {
	return &echoGuard{suppressor: orchestrator.NewEchoSuppressor()}
}

// Filter removes echo from inbound samples, returning a new slice in
// which the segment matched against our own recent TTS output is zeroed
// (samples is left untouched), and reports whether the caller should treat this as speech at
// all (isEcho=true means the VAD hint should be suppressed).
func (g *echoGuard) Filter(samples []float32) (cleaned []float32, isEcho bool) {
	pcm := audio.Float32ToPCM16(samples)
	isEcho = g.suppressor.IsEcho(pcm)
	cleanedPCM := g.suppressor.RemoveEchoRealtime(pcm)
	return audio.PCM16ToFloat32(cleanedPCM), isEcho
}

// RecordPlayback tells the guard that these PCM16LE bytes were just
// played out as TTS audio, so a correlated echo can be recognized on
// the next inbound frame.
func (g *echoGuard) RecordPlayback(pcm []byte) {
	g.suppressor.RecordPlayedAudio(pcm)
}

func (g *echoGuard) Reset() {
	g.suppressor.ClearEchoBuffer()
}

// Command voiceclient is a reference duplex-audio client for the gateway:
// it captures microphone audio with malgo, runs a local RMS VAD over it so
// every audio_data frame it sends carries a speaking/not-speaking hint, and
// plays back whatever audio the gateway returns. It speaks the same JSON wire protocol internal/gateway decodes,
// over a plain coder/websocket dial rather than an in-process orchestrator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/lokutor-ai/lokutor-gateway/pkg/audio"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
)

const sampleRate = 44100

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	gatewayURL := flag.String("url", envOr("GATEWAY_URL", "ws://localhost:8080/ws"), "gateway websocket URL")
	vadThreshold := flag.Float64("vad-threshold", 0.02, "RMS threshold for local speech detection")
	screenShare := flag.Bool("screen-share", false, "announce screen sharing as active on connect")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u, err := url.Parse(*gatewayURL)
	if err != nil {
		log.Fatalf("invalid gateway url: %v", err)
	}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect to gateway: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if *screenShare {
		_ = wsjson.Write(ctx, conn, screenShareMsg{Type: "screen_share_start", Timestamp: nowSeconds()})
	}
	_ = wsjson.Write(ctx, conn, voiceAssistantMsg{Type: "voice_assistant_start", Timestamp: nowSeconds()})

	var writeMu sync.Mutex
	send := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := wsjson.Write(ctx, conn, v); err != nil {
			log.Printf("send failed: %v", err)
		}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	var playbackMu sync.Mutex
	var playbackBytes []byte

	vad := orchestrator.NewRMSVAD(*vadThreshold, 500*time.Millisecond)
	var vadMu sync.Mutex

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			vadMu.Lock()
			_, _ = vad.Process(pInput)
			isSpeaking := vad.IsSpeaking()
			rms := vad.LastRMS()
			vadMu.Unlock()

			confidence := rms / *vadThreshold
			if confidence > 1 {
				confidence = 1
			}
			samples := audio.PCM16ToFloat32(pInput)
			send(audioDataMsg{
				Type:       "audio_data",
				Data:       samples,
				SampleRate: sampleRate,
				VAD:        vadPayload{IsSpeaking: isSpeaking, Energy: rms, Confidence: confidence},
				Timestamp:  nowSeconds(),
			})
		}
		if pOutput != nil {
			playbackMu.Lock()
			n := copy(pOutput, playbackBytes)
			playbackBytes = playbackBytes[n:]
			for i := n; i < len(pOutput); i++ {
				pOutput[i] = 0
			}
			playbackMu.Unlock()
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go heartbeatLoop(ctx, send)
	go readLoop(ctx, conn, &playbackMu, &playbackBytes, cancel)

	fmt.Println("Voice client connected. Press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	fmt.Println("\nShutting down...")
}

func heartbeatLoop(ctx context.Context, send func(interface{})) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send(heartbeatMsg{Type: "heartbeat", Timestamp: nowSeconds()})
		}
	}
}

// readLoop decodes every inbound frame and reacts to the ones this demo
// client cares about: transcripts and AI replies are printed, audio_response
// chunks are queued for playback, and screen_capture_request is answered
// immediately with an empty capture since this client has no screen to
// share (the gateway falls back to voice-only reasoning for that turn).
func readLoop(ctx context.Context, conn *websocket.Conn, playbackMu *sync.Mutex, playbackBytes *[]byte, onFatal context.CancelFunc) {
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			log.Printf("connection closed: %v", err)
			onFatal()
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("malformed message from gateway: %v", err)
			continue
		}

		switch env.Type {
		case "transcription_result":
			var msg transcriptionResultMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				fmt.Printf("\n[TRANSCRIPT] %s\n", msg.Text)
			}
		case "ai_response":
			var msg aiResponseMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				fmt.Printf("[AI] %s\n", msg.Text)
			}
		case "audio_response":
			var msg audioResponseMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				pcm := audio.Float32ToPCM16(msg.AudioData)
				playbackMu.Lock()
				*playbackBytes = append(*playbackBytes, pcm...)
				playbackMu.Unlock()
			}
		case "speech_active":
			var msg speechActiveMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				fmt.Printf("\r[listening] energy=%.4f", msg.VAD.Energy)
			}
		case "screen_capture_request":
			var msg screenCaptureRequestMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				fmt.Printf("\n[SCREEN REQUEST] %s (confidence %.2f) -- replying with no capture\n", msg.Reason, msg.Confidence)
			}
			_ = wsjson.Write(ctx, conn, map[string]interface{}{
				"type":               "screen_capture_response",
				"screen_image":       "",
				"original_text":      "",
				"original_timestamp": 0,
			})
		case "heartbeat_pong":
			// no-op; presence alone confirms the connection is alive.
		case "error":
			var msg errorMsg
			if err := json.Unmarshal(raw, &msg); err == nil {
				fmt.Printf("\n[ERROR] %s\n", msg.Message)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

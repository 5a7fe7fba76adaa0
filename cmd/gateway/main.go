// Command gateway runs the HTTP/WebSocket front door: it accepts one
// connection per client, hands it to internal/gateway's session
// manager, and wires the shared speech/reasoning/synthesis providers
// plus the optional tool-calling workflow that sits behind them.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lokutor-ai/lokutor-gateway/internal/config"
	"github.com/lokutor-ai/lokutor-gateway/internal/gateway"
	"github.com/lokutor-ai/lokutor-gateway/internal/gwlog"
	"github.com/lokutor-ai/lokutor-gateway/internal/memory"
	"github.com/lokutor-ai/lokutor-gateway/internal/multimodal"
	"github.com/lokutor-ai/lokutor-gateway/internal/perfmon"
	"github.com/lokutor-ai/lokutor-gateway/internal/rpcclient"
	"github.com/lokutor-ai/lokutor-gateway/internal/toolworkflow"
	"github.com/lokutor-ai/lokutor-gateway/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/lokutor-gateway/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/lokutor-gateway/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/lokutor-gateway/pkg/providers/tts"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: no .env file found, using system environment variables")
	}

	cfg := config.Load()
	logger := newLogger()

	stt := selectSTT(cfg)
	llm := selectLLM(cfg)
	tts := selectTTS(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workflow *toolworkflow.Workflow
	var availableTools []string
	if cfg.ToolServerCommand != "" {
		rpc := rpcclient.New(cfg.ToolServerCommand, cfg.ToolServerArgs, logger)
		if err := rpc.Connect(ctx); err != nil {
			logger.Error("tool server connect failed, continuing without tool calling", "error", err)
		} else {
			availableTools = rpc.ListTools(ctx)
			workflow = toolworkflow.New(llm, rpc, cfg.ToolWorkflowTimeout, cfg.ToolMaxRetries, cfg.QualityThreshold)
			defer rpc.Close()
		}
	}

	mem := memory.New(cfg.MemoryCap)
	perf := perfmon.New(cfg.PerfHistoryCap, cfg.PerfRollingWindow, perfmon.WithAlertHook(func(s perfmon.Sample, threshold time.Duration) {
		logger.Warn("performance threshold exceeded", "service", s.Service, "duration", s.Duration, "threshold", threshold)
	}))

	mmCfg := multimodal.DefaultConfig()
	mmCfg.MaxImageSize = cfg.MaxImageSize
	mmCfg.ScreenAnalysisCacheTTL = cfg.ScreenAnalysisCacheTTL
	mmCfg.ScreenAnalysisCacheInterval = cfg.ScreenAnalysisInterval
	mmCfg.EnableEnhancedToolCalling = workflow != nil

	mm := multimodal.New(llm, workflow, mem, perf, logger, mmCfg, availableTools)
	mgr := gateway.NewManager(stt, tts, mm, perf, logger, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		mgr.Serve(r.Context(), gateway.NewWebsocketConn(conn))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := ":" + envOr("GATEWAY_PORT", "8080")
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}

func newLogger() orchestrator.Logger {
	if os.Getenv("GATEWAY_LOG_BACKEND") == "zerolog" {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		return gwlog.NewZerolog(l)
	}
	return gwlog.NewSlog(nil)
}

func selectSTT(cfg config.Config) orchestrator.STTProvider {
	switch cfg.STTProvider {
	case "deepgram":
		return sttProvider.NewDeepgramSTT(os.Getenv("DEEPGRAM_API_KEY"))
	case "assemblyai":
		return sttProvider.NewAssemblyAISTT(os.Getenv("ASSEMBLYAI_API_KEY"))
	case "groq":
		return sttProvider.NewGroqSTT(os.Getenv("GROQ_API_KEY"), os.Getenv("GROQ_STT_MODEL"))
	case "openai":
		fallthrough
	default:
		return sttProvider.NewOpenAISTT(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_STT_MODEL"))
	}
}

func selectLLM(cfg config.Config) orchestrator.LLMProvider {
	switch cfg.LLMProvider {
	case "anthropic":
		return llmProvider.NewAnthropicLLM(os.Getenv("ANTHROPIC_API_KEY"), envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"))
	case "google":
		return llmProvider.NewGoogleLLM(os.Getenv("GOOGLE_API_KEY"), envOr("GOOGLE_MODEL", "gemini-1.5-flash"))
	case "groq":
		return llmProvider.NewGroqLLM(os.Getenv("GROQ_API_KEY"), envOr("GROQ_LLM_MODEL", "llama-3.3-70b-versatile"))
	case "openai":
		fallthrough
	default:
		return llmProvider.NewOpenAILLM(os.Getenv("OPENAI_API_KEY"), envOr("OPENAI_MODEL", "gpt-4o"))
	}
}

func selectTTS(cfg config.Config) orchestrator.TTSProvider {
	switch cfg.TTSProvider {
	case "lokutor":
		fallthrough
	default:
		return ttsProvider.NewLokutorTTS(os.Getenv("LOKUTOR_API_KEY"))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/adapters/detector"
	"github.com/haniipp/cybersentient/adapters/llm"
	"github.com/haniipp/cybersentient/adapters/stt"
	"github.com/haniipp/cybersentient/adapters/tts"
	"github.com/haniipp/cybersentient/domain/repositories"
	"github.com/haniipp/cybersentient/internal/api"
	"github.com/haniipp/cybersentient/internal/config"
	"github.com/haniipp/cybersentient/internal/websocket"
	"github.com/haniipp/cybersentient/repository"
	"github.com/haniipp/cybersentient/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Neural core: live Gemini when a key is configured, simulation otherwise.
	var llmService repositories.LargeLanguageModel
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		llmService = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, running in simulation mode")
		llmService = llm.NewMockGeminiLLM()
	}

	// Announcement synthesis.
	var textToSpeech repositories.TextToSpeech
	ttsConfig := tts.NewElevenLabsConfigFromEnv()
	if ttsConfig.APIKey != "" {
		synth, err := tts.NewElevenLabsTTS(ttsConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize announcement synthesizer", zap.Error(err))
		}
		textToSpeech = synth
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, announcements use mock audio")
		textToSpeech = tts.NewMockTTS()
	}

	// Voice query transcription.
	var speechToText repositories.SpeechToText
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		googleSTT, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			logger.Fatal("Failed to initialize speech client", zap.Error(err))
		}
		defer googleSTT.Close()
		speechToText = googleSTT
	} else {
		logger.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, voice queries use mock transcripts")
		speechToText = stt.NewMockSpeechToText("voice query simulation")
	}

	// Landmark detector sidecar. Initialization walks the fallback chain in
	// the background so startup never blocks on it.
	landmarkDetector := detector.NewTaskRunnerDetector(detector.TaskRunnerConfig{
		BaseURLs:  cfg.DetectorBaseURLs,
		Delegates: cfg.DetectorDelegates,
	}, logger)
	go func() {
		initCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := landmarkDetector.Initialize(initCtx); err != nil {
			logger.Warn("Landmark detector unavailable, bio-scans run without detections", zap.Error(err))
		}
	}()

	// Repositories and usecase services
	conversationRepo := repository.NewMemoryConversationRepository()
	operatorRepo := repository.NewMemoryOperatorRepository()
	orchestrator := usecase.NewStreamOrchestrator(llmService, logger)
	conversationService := usecase.NewConversationService(conversationRepo, orchestrator, logger)

	// WebSocket hub
	hub := websocket.NewHub(conversationService, landmarkDetector, textToSpeech, speechToText, logger)
	go hub.Run()

	// Background cleanup of abandoned conversations
	cleanup := websocket.NewConversationCleanupService(conversationRepo, cfg.ConversationIdleTTL, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Initialize API routes
	api.InitRoutes(e, hub, operatorRepo, conversationService, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("CyberSentient server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

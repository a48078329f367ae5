package main

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tickertalk/internal/broadcast"
	"tickertalk/internal/config"
	"tickertalk/internal/dialogue"
	"tickertalk/internal/domain"
	"tickertalk/internal/market"
	"tickertalk/internal/show"
	"tickertalk/internal/speech"
	"tickertalk/internal/tally"
	httpTransport "tickertalk/internal/transport/http"
	"tickertalk/internal/transport/ws"
)

//go:embed web/*
var webFS embed.FS

func main() {
	// .env is a development convenience; absence is fine
	_ = godotenv.Load()

	cfg := config.Load()

	// Set up logger
	var logger *slog.Logger
	logOpts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, logOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, logOpts))
	}

	slog.SetDefault(logger)

	logger.Info("starting tickertalk show server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Market data
	var clientOpts []market.ClientOption
	if cfg.Market.GammaBaseURL != "" || cfg.Market.ClobBaseURL != "" {
		clientOpts = append(clientOpts, market.WithBaseURLs(cfg.Market.GammaBaseURL, cfg.Market.ClobBaseURL))
	}
	marketClient := market.NewClient(logger, clientOpts...)
	selector := market.NewSelector(marketClient, cfg.Show.TopicHistorySize, logger)

	// Dialogue generation
	var generator dialogue.TextGenerator
	if cfg.Dialogue.GeminiAPIKey != "" {
		geminiGen, err := dialogue.NewGeminiGenerator(ctx, cfg.Dialogue.GeminiAPIKey, cfg.Dialogue.GeminiModel)
		if err != nil {
			logger.Error("gemini client init failed", "error", err)
			os.Exit(1)
		}
		generator = geminiGen
	} else {
		logger.Warn("GEMINI_API_KEY not set, using canned dialogue")
		generator = dialogue.CannedGenerator{}
	}

	scriptCfg := dialogue.Config{
		Turns:      cfg.Dialogue.TurnsPerDiscussion,
		MaxHistory: cfg.Dialogue.DialogueHistorySize,
	}
	scripts := show.ScriptFactoryFunc(func(topic domain.Topic) show.TurnSource {
		return dialogue.NewScript(topic, generator, scriptCfg, logger)
	})

	// Speech delivery
	var transport show.SpeechTransport
	if cfg.Speech.RoomURL != "" {
		roomClient := speech.NewRoomClient(cfg.Speech.RoomURL, logger)
		defer roomClient.Close()
		transport = roomClient
	} else {
		logger.Warn("ROOM_URL not set, speech runs in log-only mode")
		transport = speech.NewNullTransport(logger)
	}
	dispatcher := show.NewDispatcher(transport, logger)

	// Show state
	voteTally := tally.New(logger)
	broadcaster := broadcast.New(logger)
	defer broadcaster.Close()

	director := show.NewDirector(show.Config{
		DiscussionDuration: cfg.Show.DiscussionDuration,
		VotingDuration:     cfg.Show.VotingDuration,
		TransitionDuration: cfg.Show.TransitionDuration,
	}, selector, scripts, dispatcher, voteTally, broadcaster, nil, logger)

	chatHub := ws.NewChatHub(director.ChatSink(), director, logger)
	director.SetAnnouncer(chatHub)

	// HTTP server
	server := httpTransport.NewServer(cfg, broadcaster, director, chatHub, logger, webFS)

	showErr := make(chan error, 1)
	go func() {
		showErr <- director.Run(ctx)
	}()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	// Wait for interrupt or a fatal show failure
	select {
	case <-ctx.Done():
	case err := <-showErr:
		if err != nil {
			logger.Error("show failed", "error", err)
		}
		stop()
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

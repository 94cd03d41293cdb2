// Voxbot - voice-enabled Telegram knowledge bot
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxbot/voxbot/internal/bot"
	"github.com/voxbot/voxbot/internal/channels"
	"github.com/voxbot/voxbot/internal/channels/telegram"
	"github.com/voxbot/voxbot/internal/config"
	"github.com/voxbot/voxbot/internal/janitor"
	"github.com/voxbot/voxbot/internal/logging"
	"github.com/voxbot/voxbot/internal/pipeline"
	"github.com/voxbot/voxbot/internal/provider"
	"github.com/voxbot/voxbot/internal/responder"
	"github.com/voxbot/voxbot/internal/session"
	"github.com/voxbot/voxbot/internal/store"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version")
	seedStore := flag.Bool("seed", false, "Seed the knowledge base with starter entries")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Voxbot v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Optional .env for local runs; env vars are read by config.Load.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewWithConfig(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logger.Close()
	logger.Info("Starting Voxbot", "version", version, "mode", cfg.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	if err := run(ctx, cfg, logger, *seedStore); err != nil && err != context.Canceled {
		logger.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, seed bool) error {
	// Storage
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	if seed {
		n, err := store.Seed(ctx, st)
		if err != nil {
			return fmt.Errorf("failed to seed knowledge base: %w", err)
		}
		logger.Info("Knowledge base seeded", "entries", n)
	}

	// Providers
	speech, err := provider.NewSpeechClient(provider.SpeechConfig{
		BaseURL:           cfg.Speech.BaseURL,
		APIKey:            cfg.Speech.APIKey,
		TTSModel:          cfg.Speech.TTSModel,
		TranscribeTimeout: time.Duration(cfg.Speech.TranscribeTimeoutSeconds) * time.Second,
		SynthesizeTimeout: time.Duration(cfg.Speech.SynthesizeTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create speech client: %w", err)
	}

	strategy, err := buildStrategy(cfg, logger)
	if err != nil {
		return err
	}
	resp := responder.New(st, strategy, logger.WithComponent("responder"))

	transcoder := provider.NewTranscoder(cfg.Speech.FFmpegPath, cfg.Speech.TempDir)

	flows := pipeline.New(pipeline.Config{
		Speech:          speech,
		Transcoder:      transcoder,
		Responder:       resp,
		GenerateReplies: cfg.Mode == config.ModeAssistant,
		TextFallback:    cfg.Mode == config.ModeAssistant,
		Logger:          logger.WithComponent("pipeline"),
	})

	// Channels
	router := channels.NewRouter()
	router.Register(telegram.New(cfg.Channels.Telegram, logger.WithComponent("telegram")))
	if err := router.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}
	defer router.StopAll()

	// Metrics endpoint
	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, logger)
	}

	// Temp-artifact sweep
	if cfg.Janitor.Enabled {
		j, err := janitor.New(cfg.Janitor, cfg.Speech.TempDir, logger.WithComponent("janitor"))
		if err != nil {
			return fmt.Errorf("failed to create janitor: %w", err)
		}
		j.Start()
		defer j.Stop()
	}

	b := bot.New(router, session.NewManager(), flows, resp, st, speech, bot.Config{
		Mode:             cfg.Mode,
		DefaultVoice:     cfg.Speech.DefaultVoice,
		CustomVoicesOnly: cfg.Speech.CustomVoicesOnly,
	}, logger.WithComponent("bot"))

	logger.Info("Voxbot running")
	return b.Run(ctx)
}

// buildStrategy selects how text replies are produced: the assistant asks the
// chat provider, the converter answers from the fixed phrase table.
func buildStrategy(cfg *config.Config, logger *logging.Logger) (responder.Strategy, error) {
	if cfg.Mode == config.ModeConverter {
		return responder.NewRuleStrategy(), nil
	}

	chat, err := provider.NewChatClient(provider.ChatConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}
	return responder.NewProviderStrategy(chat, logger.WithComponent("chat")), nil
}

func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics endpoint failed", "error", err)
	}
}

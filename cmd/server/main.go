package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/donggyun112/PipeChat-server/internal/config"
	"github.com/donggyun112/PipeChat-server/internal/metrics"
	"github.com/donggyun112/PipeChat-server/internal/segment"
	"github.com/donggyun112/PipeChat-server/internal/server"
	"github.com/donggyun112/PipeChat-server/internal/session"
	"github.com/donggyun112/PipeChat-server/internal/transcriber"
	"github.com/donggyun112/PipeChat-server/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "pipechat-server"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("vad_threshold", float64(cfg.VAD.Threshold)),
		slog.Float64("voice_timeout", cfg.Segmenter.VoiceTimeout),
		slog.String("transcription_backend", cfg.Transcription.Backend),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	backend, err := newBackend(cfg)
	if err != nil {
		logger.Error("Failed to create transcription backend", slog.String("error", err.Error()))
		os.Exit(1)
	}

	managerConfig := session.ManagerConfig{
		SessionTimeout: cfg.Audio.GetSessionTimeoutDuration(),
		Language:       cfg.Transcription.Language,
		SampleRate:     cfg.Audio.SampleRate,
		MaxGap:         uint32(cfg.Audio.MaxGap),
		VAD: vad.Config{
			SampleRate:         cfg.Audio.SampleRate,
			Threshold:          cfg.VAD.Threshold,
			EnergyThreshold:    cfg.VAD.EnergyThreshold,
			DebounceTime:       cfg.VAD.SpeechDebounceTime,
			SilenceLimit:       cfg.VAD.SilenceLimit,
			ModelResetInterval: cfg.VAD.ModelResetInterval,
			EnergyWindow:       cfg.VAD.EnergyWindow,
		},
		Segmenter: segment.Config{
			SampleRate:       cfg.Audio.SampleRate,
			PreRoll:          cfg.Segmenter.PreRoll,
			QuickRejection:   cfg.Segmenter.QuickRejection,
			VoiceTimeout:     cfg.Segmenter.VoiceTimeout,
			MinUtterance:     cfg.Segmenter.MinUtterance,
			InterimInterval:  cfg.Segmenter.InterimInterval,
			MaxBufferSeconds: cfg.Audio.MaxBufferSeconds,
			Language:         cfg.Transcription.Language,
		},
		Warmup: cfg.Transcription.Warmup,
	}

	sessionMgr, err := session.NewManager(managerConfig, backend, nil, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create session manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Session manager initialized",
		slog.Duration("session_timeout", cfg.Audio.GetSessionTimeoutDuration()),
		slog.String("transcription_backend", cfg.Transcription.Backend),
	)

	udpServer := server.NewUDPServer(&cfg.Server, logger, sessionMgr, appMetrics)
	logger.Info("UDP server initialized")

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		stats, _ := backend.(server.TranscriberStats)
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, sessionMgr, udpServer, stats, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	if err := udpServer.Start(); err != nil {
		logger.Error("Failed to start UDP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("udp_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.UDPPort)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop UDP server (stop accepting new packets)
	if err := udpServer.Stop(); err != nil {
		logger.Error("Error stopping UDP server", slog.String("error", err.Error()))
	}

	// Drain open utterances so their final results are not lost.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	sessionMgr.Stop(drainCtx)
	drainCancel()

	if closer, ok := backend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Error closing transcription backend", slog.String("error", err.Error()))
		}
	}

	stats := udpServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("packets_received", stats.PacketsReceived),
		slog.Uint64("packets_processed", stats.PacketsProcessed),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("active_sessions", stats.ActiveSessions),
	)

	logger.Info("Service stopped")
}

// newBackend builds the configured transcription backend.
func newBackend(cfg *config.Config) (transcriber.Transcriber, error) {
	switch cfg.Transcription.Backend {
	case "openai":
		return transcriber.NewOpenAIBackend(transcriber.OpenAIConfig{
			APIKey:     cfg.Transcription.APIKey,
			Model:      cfg.Transcription.Model,
			SampleRate: cfg.Audio.SampleRate,
		})
	case "http":
		return transcriber.NewHTTPBackend(transcriber.HTTPConfig{
			Endpoint:      cfg.Transcription.Endpoint,
			APIKey:        cfg.Transcription.APIKey,
			Model:         cfg.Transcription.Model,
			SampleRate:    cfg.Audio.SampleRate,
			Timeout:       cfg.Transcription.GetTimeoutDuration(),
			MaxRetries:    cfg.Transcription.MaxRetries,
			MaxConcurrent: cfg.Transcription.MaxConcurrent,
		})
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Transcription.Backend)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/playback"
	"github.com/lexiqai/transcript-sync/internal/rpc"
	"github.com/lexiqai/transcript-sync/internal/stt"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	opts, err := playback.OptionsFromConfig(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid playback options")
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Str("past_end", opts.PastEnd.String()).
		Float64("max_updates_per_second", cfg.MaxUpdatesPerSecond).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcript Sync Service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr := loadTranscript(ctx, cfg, logger)
	stats := tr.Stats()
	observability.RecordTranscript(stats.Sentences, stats.Words, stats.DroppedSentences, stats.DroppedWords)
	logger.Info().
		Int("sentences", stats.Sentences).
		Int("words", stats.Words).
		Int("dropped_sentences", stats.DroppedSentences).
		Int("dropped_words", stats.DroppedWords).
		Bool("overlapping", stats.Overlapping).
		Msg("Transcript ready")

	g, gctx := errgroup.WithContext(ctx)

	grpcServer := rpc.NewServer(rpc.NewService(tr, opts.PastEnd))

	// Create HTTP server
	mux := http.NewServeMux()

	mux.HandleFunc("/streams/playback", playback.HandlePlaybackWS(tr, opts))
	mux.HandleFunc("/v1/resolve", playback.HandleResolve(tr, opts))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness checks are built here to avoid import cycles
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"transcript": func(ctx context.Context) (bool, error) {
			if tr.IsEmpty() {
				return false, transcript.ErrNoTranscript
			}
			return true, nil
		},
		"grpc": grpcServer.Serving,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. Sessions inherit gctx so they end on shutdown.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/playback", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}

	logger.Info().Msg("Server exited gracefully")
}

// loadTranscript reads TRANSCRIPT_PATH or transcribes MEDIA_URL. Failures are
// logged and leave an empty transcript so sessions still work.
func loadTranscript(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *transcript.Transcript {
	format, err := transcript.ParseFormat(cfg.TranscriptFormat)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid transcript format")
		return transcript.Empty()
	}

	var tr *transcript.Transcript
	switch {
	case cfg.TranscriptPath != "":
		tr, err = transcript.Load(cfg.TranscriptPath, format)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.TranscriptPath).Msg("Failed to load transcript")
		}

	case cfg.MediaURL != "":
		tr, err = stt.NewDeepgramClient(cfg).Transcribe(ctx, cfg.MediaURL)
		if err != nil {
			logger.Error().Err(err).Str("media_url", cfg.MediaURL).Msg("Failed to transcribe media")
		}

	default:
		logger.Warn().Msg("No TRANSCRIPT_PATH or MEDIA_URL configured, serving an empty transcript")
	}

	if tr == nil {
		return transcript.Empty()
	}
	return tr
}

package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resilience"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// ErrInvalidMediaURL is returned before any request for URLs Deepgram cannot fetch
var ErrInvalidMediaURL = errors.New("media url must be an absolute http(s) url")

var _ Transcriber = (*DeepgramClient)(nil)

// DeepgramClient implements Transcriber using Deepgram's pre-recorded API
type DeepgramClient struct {
	config         *config.Config
	fetch          fetchFunc
	timeout        time.Duration
	retry          *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// transcriptionOptions requests paragraphs, which carry the sentence timings.
// Smart formatting stays off: it rewrites sentence text but not the word rows.
func transcriptionOptions(cfg *config.Config) *interfaces.PreRecordedTranscriptionOptions {
	return &interfaces.PreRecordedTranscriptionOptions{
		Model:      cfg.DeepgramModel,
		Language:   cfg.DeepgramLanguage,
		Punctuate:  true,
		Paragraphs: true,
	}
}

// NewDeepgramClient creates a client for Deepgram's pre-recorded endpoint
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	options := transcriptionOptions(cfg)
	dg := api.New(listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{}))

	fetch := func(ctx context.Context, mediaURL string) ([]byte, error) {
		res, err := dg.FromURL(ctx, mediaURL, options)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	}

	return newDeepgramClient(cfg, fetch)
}

func newDeepgramClient(cfg *config.Config, fetch fetchFunc) *DeepgramClient {
	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	circuitBreaker.OnStateChange = func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	}

	return &DeepgramClient{
		config:  cfg,
		fetch:   fetch,
		timeout: time.Duration(cfg.DeepgramTimeout) * time.Second,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		},
		circuitBreaker: circuitBreaker,
		logger:         observability.Component("stt"),
	}
}

// Raw returns the Deepgram response for mediaURL as JSON. Transient
// failures are retried; repeated failures open the circuit breaker.
func (d *DeepgramClient) Raw(ctx context.Context, mediaURL string) ([]byte, error) {
	if err := validateMediaURL(mediaURL); err != nil {
		return nil, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var body []byte
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		return d.circuitBreaker.Call(func() error {
			var err error
			body, err = d.fetch(ctx, mediaURL)
			if err != nil {
				observability.IncrementCircuitBreakerFailures("deepgram")
			}
			return err
		})
	}, d.retry, isRetryableFetchError)

	if err != nil {
		observability.RecordError("transcription_failed", "stt")
		d.logger.Error().Err(err).Str("media_url", mediaURL).Msg("Deepgram transcription failed")
		return nil, fmt.Errorf("deepgram transcription: %w", err)
	}

	d.logger.Info().
		Str("media_url", mediaURL).
		Str("model", d.config.DeepgramModel).
		Int("bytes", len(body)).
		Dur("took", time.Since(start)).
		Msg("Deepgram transcription complete")
	return body, nil
}

// Transcribe fetches and decodes a Deepgram transcript for mediaURL
func (d *DeepgramClient) Transcribe(ctx context.Context, mediaURL string) (*transcript.Transcript, error) {
	body, err := d.Raw(ctx, mediaURL)
	if err != nil {
		return transcript.Empty(), err
	}

	t, err := transcript.Decode(body, transcript.FormatDeepgram)
	if err != nil {
		return t, err
	}

	stats := t.Stats()
	if stats.DroppedWords > 0 || stats.DroppedSentences > 0 {
		d.logger.Warn().
			Int("dropped_words", stats.DroppedWords).
			Int("dropped_sentences", stats.DroppedSentences).
			Msg("Dropped malformed rows from Deepgram response")
	}
	return t, nil
}

// isRetryableFetchError never retries through an open breaker
func isRetryableFetchError(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}

func validateMediaURL(mediaURL string) error {
	u, err := url.Parse(mediaURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidMediaURL, mediaURL)
	}
	return nil
}

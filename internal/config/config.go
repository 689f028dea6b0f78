package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcript sync service
type Config struct {
	// Server configuration
	Port     string `envconfig:"PORT" default:"8080"`
	GRPCPort string `envconfig:"GRPC_PORT" default:"50051"`

	// Transcript source. TRANSCRIPT_PATH wins over MEDIA_URL when both are set.
	TranscriptPath   string `envconfig:"TRANSCRIPT_PATH" default:""`
	TranscriptFormat string `envconfig:"TRANSCRIPT_FORMAT" default:"auto"` // auto, deepgram, native
	MediaURL         string `envconfig:"MEDIA_URL" default:""`             // transcribed through Deepgram at startup

	// Deepgram pre-recorded API configuration (only needed with MEDIA_URL)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	DeepgramTimeout  int    `envconfig:"DEEPGRAM_TIMEOUT" default:"120"` // seconds

	// Resolution behaviour
	PastEndPolicy       string  `envconfig:"PAST_END_POLICY" default:"wrap"`      // wrap, hold, none
	MaxUpdatesPerSecond float64 `envconfig:"MAX_UPDATES_PER_SECOND" default:"30"` // per-session push cap
	SessionIdleTimeout  int     `envconfig:"SESSION_IDLE_TIMEOUT" default:"300"`  // seconds without samples

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot check on its own
func (c *Config) Validate() error {
	switch strings.ToLower(c.PastEndPolicy) {
	case "wrap", "hold", "none":
	default:
		return fmt.Errorf("PAST_END_POLICY must be wrap, hold or none, got %q", c.PastEndPolicy)
	}

	switch strings.ToLower(c.TranscriptFormat) {
	case "auto", "deepgram", "native":
	default:
		return fmt.Errorf("TRANSCRIPT_FORMAT must be auto, deepgram or native, got %q", c.TranscriptFormat)
	}

	if c.TranscriptPath == "" && c.MediaURL != "" && c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required when MEDIA_URL is set")
	}

	if c.MaxUpdatesPerSecond <= 0 {
		return fmt.Errorf("MAX_UPDATES_PER_SECOND must be positive, got %v", c.MaxUpdatesPerSecond)
	}

	return nil
}

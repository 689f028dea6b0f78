package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes
const (
	OutcomeWord         = "word"
	OutcomeSentenceOnly = "sentence_only"
	OutcomeEmpty        = "empty"
)

// Push statuses
const (
	PushSent      = "sent"
	PushUnchanged = "unchanged"
	PushThrottled = "throttled"
)

// Outcome classifies a resolution for the resolutions counter
func Outcome(hasSentence, hasWord bool) string {
	switch {
	case hasWord:
		return OutcomeWord
	case hasSentence:
		return OutcomeSentenceOnly
	default:
		return OutcomeEmpty
	}
}

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcript_sync_active_sessions",
		Help: "Number of connected playback sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_sync_sessions_total",
		Help: "Total number of playback sessions",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_sync_session_duration_seconds",
		Help:    "Duration of playback sessions in seconds",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
	})

	// Resolution metrics
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_sync_resolutions_total",
		Help: "Total number of time resolutions by outcome",
	}, []string{"outcome", "source"})

	resolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transcript_sync_resolution_latency_seconds",
		Help:    "Time spent resolving one sample",
		Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
	})

	supersededSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_sync_superseded_samples_total",
		Help: "Time samples replaced by a newer sample before being resolved",
	})

	pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_sync_pushes_total",
		Help: "Highlight results sent to clients",
	}, []string{"status"}) // sent, unchanged, throttled

	// Transcript metrics
	transcriptSentences = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcript_sync_transcript_sentences",
		Help: "Sentences in the loaded transcript",
	})

	transcriptWords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcript_sync_transcript_words",
		Help: "Words in the loaded transcript",
	})

	droppedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_sync_dropped_rows_total",
		Help: "Transcript rows rejected at load time",
	}, []string{"kind"}) // word, sentence

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_sync_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "transcript_sync_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_sync_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single playback session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	mu        sync.Mutex
	ended     bool
}

// NewSessionMetrics creates a new metrics tracker and counts the session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	activeSessions.Inc()
	totalSessions.Inc()
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// End records the end of the session. Later calls are no-ops.
func (m *SessionMetrics) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordPush records the fate of one resolved result
func (m *SessionMetrics) RecordPush(status string) {
	pushes.WithLabelValues(status).Inc()
}

// RecordSuperseded records a sample dropped in favour of a newer one
func (m *SessionMetrics) RecordSuperseded() {
	supersededSamples.Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordResolution records one resolution and how long it took
func RecordResolution(outcome, source string, took time.Duration) {
	resolutions.WithLabelValues(outcome, source).Inc()
	resolutionLatency.Observe(took.Seconds())
}

// RecordTranscript publishes the size of the loaded transcript
func RecordTranscript(sentences, words, droppedSentences, droppedWords int) {
	transcriptSentences.Set(float64(sentences))
	transcriptWords.Set(float64(words))
	droppedRows.WithLabelValues("sentence").Add(float64(droppedSentences))
	droppedRows.WithLabelValues("word").Add(float64(droppedWords))
}

// RecordError records an error outside of a session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Players are served from arbitrary origins
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Inbound event names
const (
	EventTime       = "time"
	EventSeek       = "seek"
	EventRate       = "rate"
	EventVisibility = "visibility"
	EventStop       = "stop"
)

// Outbound event names
const (
	EventReady     = "ready"
	EventHighlight = "highlight"
	EventError     = "error"
)

// Event is a message from the time source
type Event struct {
	Event   string   `json:"event"`
	Time    *float64 `json:"time,omitempty"`
	Rate    *float64 `json:"rate,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
}

// Message is a message sent back to the time source
type Message struct {
	Event     string           `json:"event"`
	SessionID string           `json:"session_id"`
	Sentences int              `json:"sentences"`
	Words     int              `json:"words"`
	Time      *float64         `json:"time,omitempty"`
	Result    *resolver.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Options controls how sessions resolve and push results
type Options struct {
	PastEnd             resolver.PastEndPolicy
	MaxUpdatesPerSecond float64
	IdleTimeout         time.Duration // zero disables the read deadline
}

// OptionsFromConfig builds session options from service configuration
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := resolver.ParsePastEndPolicy(cfg.PastEndPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		PastEnd:             policy,
		MaxUpdatesPerSecond: cfg.MaxUpdatesPerSecond,
		IdleTimeout:         time.Duration(cfg.SessionIdleTimeout) * time.Second,
	}, nil
}

// Session is one connected player. A reader goroutine feeds time samples
// into a latest-wins mailbox; a resolver goroutine drains it and pushes
// changed results back.
type Session struct {
	id         string
	conn       *websocket.Conn
	transcript *transcript.Transcript
	resolver   *resolver.Resolver
	limiter    *rate.Limiter
	inbox      *mailbox
	opts       Options

	// State shared between the reader and resolver goroutines
	mu         sync.Mutex
	visible    bool
	lastSample *sample
	rate       float64

	// Owned by the resolver goroutine
	priorIndex int
	lastSent   *resolver.Result

	writeMu sync.Mutex

	metrics *observability.SessionMetrics
	logger  zerolog.Logger

	done chan struct{}
}

// NewSession creates a session for an upgraded connection
func NewSession(conn *websocket.Conn, t *transcript.Transcript, opts Options) *Session {
	if t == nil {
		t = transcript.Empty()
	}

	sessionID := uuid.New().String()
	logger := observability.WithCorrelationID(sessionID).
		With().
		Str("session_id", sessionID).
		Logger()

	limit := rate.Inf
	burst := 1
	if opts.MaxUpdatesPerSecond > 0 {
		limit = rate.Limit(opts.MaxUpdatesPerSecond)
		burst = int(math.Max(1, math.Ceil(opts.MaxUpdatesPerSecond)))
	}

	return &Session{
		id:         sessionID,
		conn:       conn,
		transcript: t,
		resolver:   resolver.New(opts.PastEnd),
		limiter:    rate.NewLimiter(limit, burst),
		inbox:      newMailbox(),
		opts:       opts,
		visible:    true,
		rate:       1,
		metrics:    observability.NewSessionMetrics(sessionID),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// HandlePlaybackWS is the entry point for player WebSocket connections
func HandlePlaybackWS(t *transcript.Transcript, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade writes its own error response on failure
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.Component("playback")
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		NewSession(conn, t, opts).Run(r.Context())
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Run serves the session until the player stops, disconnects, idles out
// or ctx is cancelled
func (s *Session) Run(ctx context.Context) {
	defer s.metrics.End()

	stats := s.transcript.Stats()
	s.logger.Info().
		Int("sentences", stats.Sentences).
		Int("words", stats.Words).
		Str("past_end", s.opts.PastEnd.String()).
		Msg("Playback session started")

	if err := s.send(Message{Event: EventReady, SessionID: s.id, Sentences: stats.Sentences, Words: stats.Words}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send ready message")
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processSamples()
	}()

	// Unblock the reader when the request context ends
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.processIncomingMessages()
	close(s.done)
	wg.Wait()

	s.logger.Info().Msg("Playback session ended")
}

// processIncomingMessages reads player events until the connection closes
// or a stop event arrives
func (s *Session) processIncomingMessages() {
	for {
		if s.opts.IdleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			s.rejectEvent("invalid_event", fmt.Errorf("invalid event: %w", err))
			continue
		}

		switch ev.Event {
		case EventTime, EventSeek:
			if ev.Time == nil {
				s.rejectEvent("invalid_event", fmt.Errorf("%s event requires time", ev.Event))
				continue
			}
			s.offer(sample{time: *ev.Time, source: ev.Event, force: ev.Event == EventSeek})

		case EventRate:
			s.mu.Lock()
			if ev.Rate != nil {
				s.rate = *ev.Rate
			}
			playbackRate := s.rate
			var at *float64
			if ev.Time != nil {
				at = ev.Time
			} else if s.lastSample != nil {
				t := s.lastSample.time
				at = &t
			}
			s.mu.Unlock()

			s.logger.Debug().Float64("rate", playbackRate).Msg("Playback rate changed")
			if at != nil {
				s.offer(sample{time: *at, source: EventRate, force: true})
			}

		case EventVisibility:
			if ev.Visible == nil {
				s.rejectEvent("invalid_event", fmt.Errorf("visibility event requires visible"))
				continue
			}
			s.setVisible(*ev.Visible)

		case EventStop:
			s.logger.Info().Msg("Player stopped")
			return

		default:
			s.rejectEvent("unknown_event", fmt.Errorf("unknown event %q", ev.Event))
		}
	}
}

// offer records the latest sample and queues it unless the player is hidden
func (s *Session) offer(smp sample) {
	s.mu.Lock()
	last := smp
	s.lastSample = &last
	visible := s.visible
	s.mu.Unlock()

	if !visible {
		return
	}
	if s.inbox.put(smp) {
		s.metrics.RecordSuperseded()
	}
}

// setVisible toggles updates. Showing the player again re-resolves the last
// known time so the display catches up.
func (s *Session) setVisible(visible bool) {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	var last *sample
	if s.lastSample != nil {
		cp := *s.lastSample
		last = &cp
	}
	s.mu.Unlock()

	s.logger.Debug().Bool("visible", visible).Msg("Visibility changed")
	if visible && !was && last != nil {
		s.inbox.put(sample{time: last.time, source: EventVisibility, force: true})
	}
}

// processSamples resolves queued samples until the session ends
func (s *Session) processSamples() {
	for {
		select {
		case <-s.inbox.ready:
			smp, ok := s.inbox.take()
			if !ok {
				continue
			}
			s.handleSample(smp)

		case <-s.done:
			return
		}
	}
}

func (s *Session) handleSample(smp sample) {
	s.mu.Lock()
	visible := s.visible
	s.mu.Unlock()
	if !visible {
		return
	}

	start := time.Now()
	result, next := s.resolver.Resolve(s.transcript, smp.time, s.priorIndex)
	s.priorIndex = next
	observability.RecordResolution(
		observability.Outcome(result.HasSentence(), result.Highlight != nil),
		smp.source,
		time.Since(start),
	)

	if !smp.force {
		if s.lastSent != nil && s.lastSent.Equal(result) {
			s.metrics.RecordPush(observability.PushUnchanged)
			return
		}
		if !s.limiter.Allow() {
			s.metrics.RecordPush(observability.PushThrottled)
			return
		}
	}

	t := smp.time
	if err := s.send(Message{Event: EventHighlight, SessionID: s.id, Time: &t, Result: &result}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to push highlight")
		s.metrics.RecordError("push_failed", "playback")
		return
	}
	s.metrics.RecordPush(observability.PushSent)
	s.lastSent = &result
}

func (s *Session) rejectEvent(errorType string, err error) {
	s.logger.Warn().Err(err).Msg("Rejected player event")
	s.metrics.RecordError(errorType, "playback")
	if sendErr := s.send(Message{Event: EventError, SessionID: s.id, Error: err.Error()}); sendErr != nil {
		s.logger.Debug().Err(sendErr).Msg("Failed to send error message")
	}
}

// send writes one message. Both session goroutines write, so writes are
// serialized.
func (s *Session) send(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

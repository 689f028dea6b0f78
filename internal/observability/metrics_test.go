package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		hasSentence, hasWord bool
		expected             string
	}{
		{true, true, OutcomeWord},
		{true, false, OutcomeSentenceOnly},
		{false, false, OutcomeEmpty},
	}

	for _, tt := range tests {
		if got := Outcome(tt.hasSentence, tt.hasWord); got != tt.expected {
			t.Errorf("Outcome(%v, %v): expected %s, got %s", tt.hasSentence, tt.hasWord, tt.expected, got)
		}
	}
}

func TestSessionMetrics(t *testing.T) {
	active := testutil.ToFloat64(activeSessions)
	total := testutil.ToFloat64(totalSessions)

	m := NewSessionMetrics("session-1")
	if got := testutil.ToFloat64(activeSessions); got != active+1 {
		t.Errorf("Expected %v active sessions, got %v", active+1, got)
	}
	if got := testutil.ToFloat64(totalSessions); got != total+1 {
		t.Errorf("Expected %v total sessions, got %v", total+1, got)
	}

	sent := testutil.ToFloat64(pushes.WithLabelValues(PushSent))
	m.RecordPush(PushSent)
	if got := testutil.ToFloat64(pushes.WithLabelValues(PushSent)); got != sent+1 {
		t.Errorf("Expected %v sent pushes, got %v", sent+1, got)
	}

	// End is idempotent
	m.End()
	m.End()
	if got := testutil.ToFloat64(activeSessions); got != active {
		t.Errorf("Expected %v active sessions after End, got %v", active, got)
	}
}

func TestRecordTranscript(t *testing.T) {
	dropped := testutil.ToFloat64(droppedRows.WithLabelValues("word"))

	RecordTranscript(4, 20, 1, 3)
	RecordResolution(OutcomeWord, "test", time.Millisecond)

	if got := testutil.ToFloat64(transcriptSentences); got != 4 {
		t.Errorf("Expected 4 sentences, got %v", got)
	}
	if got := testutil.ToFloat64(droppedRows.WithLabelValues("word")); got != dropped+3 {
		t.Errorf("Expected %v dropped words, got %v", dropped+3, got)
	}
}

package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/resilience"
)

const deepgramBody = `{
  "results": {
    "channels": [{
      "alternatives": [{
        "words": [
          {"word": "hello", "start": 0.0, "end": 0.4},
          {"word": "world", "start": 0.4, "end": 0.9}
        ],
        "paragraphs": {
          "paragraphs": [
            {"sentences": [{"text": "Hello world.", "start": 0.0, "end": 0.9}]}
          ]
        }
      }]
    }]
  }
}`

func testConfig() *config.Config {
	return &config.Config{
		DeepgramModel:              "nova-2",
		DeepgramLanguage:           "en",
		DeepgramTimeout:            5,
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           3,
		RetryInitialBackoff:        1,
	}
}

func TestTranscribe(t *testing.T) {
	var gotURL string
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		gotURL = mediaURL
		return []byte(deepgramBody), nil
	})

	tr, err := client.Transcribe(context.Background(), "https://example.com/talk.mp3")
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	if gotURL != "https://example.com/talk.mp3" {
		t.Errorf("Expected media url to be passed through, got '%s'", gotURL)
	}
	if tr.Len() != 1 || len(tr.Words()) != 2 {
		t.Errorf("Expected 1 sentence and 2 words, got %d and %d", tr.Len(), len(tr.Words()))
	}
}

func TestTranscribe_InvalidURL(t *testing.T) {
	calls := 0
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		calls++
		return nil, nil
	})

	for _, u := range []string{"", "talk.mp3", "ftp://example.com/a.mp3", "https://"} {
		tr, err := client.Transcribe(context.Background(), u)
		if !errors.Is(err, ErrInvalidMediaURL) {
			t.Errorf("Expected ErrInvalidMediaURL for %q, got %v", u, err)
		}
		if tr == nil || !tr.IsEmpty() {
			t.Errorf("Expected an empty transcript for %q", u)
		}
	}
	if calls != 0 {
		t.Errorf("Expected no fetches for invalid urls, got %d", calls)
	}
}

func TestRaw_RetriesTransientErrors(t *testing.T) {
	calls := 0
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return []byte(deepgramBody), nil
	})

	if _, err := client.Raw(context.Background(), "https://example.com/a.mp3"); err != nil {
		t.Fatalf("Raw() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestRaw_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		calls++
		return nil, errors.New("401 invalid credentials")
	})

	if _, err := client.Raw(context.Background(), "https://example.com/a.mp3"); err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRaw_CircuitOpens(t *testing.T) {
	calls := 0
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		calls++
		return nil, errors.New("503 service unavailable")
	})

	// Two failures open the breaker; the third attempt is rejected without a call
	_, err := client.Raw(context.Background(), "https://example.com/a.mp3")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls before the circuit opened, got %d", calls)
	}
}

func TestTranscribe_UndecodableBody(t *testing.T) {
	client := newDeepgramClient(testConfig(), func(ctx context.Context, mediaURL string) ([]byte, error) {
		return []byte(`{"results": {"channels": []}}`), nil
	})

	tr, err := client.Transcribe(context.Background(), "https://example.com/a.mp3")
	if err == nil {
		t.Error("Expected error for a response without alternatives")
	}
	if tr == nil {
		t.Error("Expected a non-nil transcript")
	}
}

func TestTranscriptionOptions(t *testing.T) {
	opts := transcriptionOptions(&config.Config{DeepgramModel: "nova-2", DeepgramLanguage: "en"})

	if !opts.Paragraphs || !opts.Punctuate {
		t.Errorf("Expected paragraphs and punctuation, got %+v", opts)
	}
	if opts.SmartFormat {
		t.Error("Expected smart formatting to be off")
	}
	if opts.Model != "nova-2" || opts.Language != "en" {
		t.Errorf("Expected model nova-2 and language en, got %s and %s", opts.Model, opts.Language)
	}
}

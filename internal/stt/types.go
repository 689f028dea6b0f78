package stt

import (
	"context"

	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// Transcriber turns a hosted media file into a timed transcript
type Transcriber interface {
	// Transcribe fetches word and sentence timings for mediaURL
	Transcribe(ctx context.Context, mediaURL string) (*transcript.Transcript, error)

	// Raw returns the provider response body for mediaURL
	Raw(ctx context.Context, mediaURL string) ([]byte, error)
}

// fetchFunc returns the provider response for mediaURL as JSON
type fetchFunc func(ctx context.Context, mediaURL string) ([]byte, error)

package transcript

import (
	"errors"
	"fmt"
)

// Word is a timestamped token. Times are seconds from media start.
type Word struct {
	Text  string  `json:"word" yaml:"word"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Sentence is a timestamped span of text expected to enclose a run of words.
type Sentence struct {
	Text  string  `json:"text" yaml:"text"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Contains reports whether w lies fully inside the sentence's time range
func (s Sentence) Contains(w Word) bool {
	return w.Start >= s.Start && w.End <= s.End
}

// WordInput is a raw word row before validation
type WordInput = Word

// SentenceInput is a raw sentence row before validation
type SentenceInput = Sentence

// Stats describes what Build kept and dropped
type Stats struct {
	Words            int  `json:"words"`
	Sentences        int  `json:"sentences"`
	DroppedWords     int  `json:"dropped_words"`
	DroppedSentences int  `json:"dropped_sentences"`
	Overlapping      bool `json:"overlapping"`
}

var (
	// ErrMalformedInput is returned when non-empty input contained no usable rows
	ErrMalformedInput = errors.New("malformed transcript input")

	// ErrUnknownFormat is returned when a transcript document cannot be recognised
	ErrUnknownFormat = errors.New("unknown transcript format")

	// ErrNoTranscript is returned when a document decodes but carries no transcript
	ErrNoTranscript = errors.New("document contains no transcript")
)

// MalformedInputError carries the row counts behind ErrMalformedInput
type MalformedInputError struct {
	DroppedWords     int
	DroppedSentences int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%s: dropped %d words and %d sentences",
		ErrMalformedInput, e.DroppedWords, e.DroppedSentences)
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

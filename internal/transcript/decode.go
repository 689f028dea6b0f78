package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a transcript document layout
type Format string

const (
	FormatAuto     Format = "auto"
	FormatDeepgram Format = "deepgram" // Deepgram pre-recorded response
	FormatNative   Format = "native"   // {words: [...], sentences: [...]}, JSON or YAML
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatDeepgram, FormatNative:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// optFloat and optString record whether a field was present and well typed.
// Rows with a bad field are dropped, not the whole document.
type optFloat struct {
	v  float64
	ok bool
}

func (f *optFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(b, &f.v); err == nil {
		f.ok = true
	}
	return nil
}

func (f *optFloat) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&f.v); err == nil && node.Tag != "!!null" {
		f.ok = true
	}
	return nil
}

func (f optFloat) value() float64 {
	if !f.ok {
		return math.NaN()
	}
	return f.v
}

type optString struct {
	v  string
	ok bool
}

func (s *optString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(b, &s.v); err == nil {
		s.ok = true
	}
	return nil
}

func (s *optString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag != "!!null" {
		s.v = node.Value
		s.ok = true
	}
	return nil
}

// rowStart is the row's start time, or NaN when any field is unusable so
// that Build drops the row
func rowStart(text optString, start optFloat) float64 {
	if !text.ok {
		return math.NaN()
	}
	return start.value()
}

type rawWord struct {
	Word  optString `json:"word" yaml:"word"`
	Start optFloat  `json:"start" yaml:"start"`
	End   optFloat  `json:"end" yaml:"end"`
}

func (w rawWord) input() WordInput {
	return WordInput{Text: w.Word.v, Start: rowStart(w.Word, w.Start), End: w.End.value()}
}

type rawSentence struct {
	Text  optString `json:"text" yaml:"text"`
	Start optFloat  `json:"start" yaml:"start"`
	End   optFloat  `json:"end" yaml:"end"`
}

func (s rawSentence) input() SentenceInput {
	return SentenceInput{Text: s.Text.v, Start: rowStart(s.Text, s.Start), End: s.End.value()}
}

// deepgramResponse mirrors the parts of a Deepgram pre-recorded response
// that carry word and sentence timing
type deepgramResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Words      []json.RawMessage `json:"words"`
				Paragraphs *struct {
					Paragraphs []struct {
						Sentences []json.RawMessage `json:"sentences"`
					} `json:"paragraphs"`
				} `json:"paragraphs"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

type nativeJSON struct {
	Words     []json.RawMessage `json:"words"`
	Sentences []json.RawMessage `json:"sentences"`
}

type nativeYAML struct {
	Words     []yaml.Node `yaml:"words"`
	Sentences []yaml.Node `yaml:"sentences"`
}

// Decode parses a transcript document and builds a Transcript from it
func Decode(data []byte, format Format) (*Transcript, error) {
	words, sentences, err := decodeRows(data, format)
	if err != nil {
		return Empty(), err
	}
	return Build(words, sentences)
}

func decodeRows(data []byte, format Format) ([]WordInput, []SentenceInput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, ErrNoTranscript
	}

	switch format {
	case FormatDeepgram:
		return decodeDeepgram(trimmed)
	case FormatNative:
		if trimmed[0] == '{' {
			return decodeNativeJSON(trimmed)
		}
		return decodeNativeYAML(trimmed)
	case FormatAuto, "":
		if trimmed[0] != '{' {
			return decodeNativeYAML(trimmed)
		}
		var top map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &top); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
		}
		if _, ok := top["results"]; ok {
			return decodeDeepgram(trimmed)
		}
		return decodeNativeJSON(trimmed)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeDeepgram(data []byte) ([]WordInput, []SentenceInput, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}
	if resp.Results == nil || len(resp.Results.Channels) == 0 ||
		len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, nil, ErrNoTranscript
	}

	// Only the first channel's best alternative is used
	alt := resp.Results.Channels[0].Alternatives[0]

	words := make([]WordInput, 0, len(alt.Words))
	for _, raw := range alt.Words {
		var w rawWord
		if err := json.Unmarshal(raw, &w); err != nil {
			words = append(words, WordInput{Start: math.NaN()})
			continue
		}
		words = append(words, w.input())
	}

	var sentences []SentenceInput
	if alt.Paragraphs != nil {
		for _, p := range alt.Paragraphs.Paragraphs {
			for _, raw := range p.Sentences {
				var s rawSentence
				if err := json.Unmarshal(raw, &s); err != nil {
					sentences = append(sentences, SentenceInput{Start: math.NaN()})
					continue
				}
				sentences = append(sentences, s.input())
			}
		}
	}

	if len(words) == 0 && len(sentences) == 0 {
		return nil, nil, ErrNoTranscript
	}
	return words, sentences, nil
}

func decodeNativeJSON(data []byte) ([]WordInput, []SentenceInput, error) {
	var doc nativeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to decode transcript: %w", err)
	}

	words := make([]WordInput, 0, len(doc.Words))
	for _, raw := range doc.Words {
		var w rawWord
		if err := json.Unmarshal(raw, &w); err != nil {
			words = append(words, WordInput{Start: math.NaN()})
			continue
		}
		words = append(words, w.input())
	}

	sentences := make([]SentenceInput, 0, len(doc.Sentences))
	for _, raw := range doc.Sentences {
		var s rawSentence
		if err := json.Unmarshal(raw, &s); err != nil {
			sentences = append(sentences, SentenceInput{Start: math.NaN()})
			continue
		}
		sentences = append(sentences, s.input())
	}

	if len(words) == 0 && len(sentences) == 0 {
		return nil, nil, ErrNoTranscript
	}
	return words, sentences, nil
}

func decodeNativeYAML(data []byte) ([]WordInput, []SentenceInput, error) {
	var doc nativeYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	words := make([]WordInput, 0, len(doc.Words))
	for i := range doc.Words {
		var w rawWord
		if err := doc.Words[i].Decode(&w); err != nil {
			words = append(words, WordInput{Start: math.NaN()})
			continue
		}
		words = append(words, w.input())
	}

	sentences := make([]SentenceInput, 0, len(doc.Sentences))
	for i := range doc.Sentences {
		var s rawSentence
		if err := doc.Sentences[i].Decode(&s); err != nil {
			sentences = append(sentences, SentenceInput{Start: math.NaN()})
			continue
		}
		sentences = append(sentences, s.input())
	}

	if len(words) == 0 && len(sentences) == 0 {
		return nil, nil, ErrNoTranscript
	}
	return words, sentences, nil
}

// Load reads and decodes a transcript file. With FormatAuto, .yaml/.yml
// files are read as the native layout.
func Load(path string, format Format) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("failed to read transcript %s: %w", path, err)
	}

	if format == FormatAuto || format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = FormatNative
		}
	}

	t, err := Decode(data, format)
	if err != nil {
		return t, fmt.Errorf("failed to load transcript %s: %w", path, err)
	}
	return t, nil
}

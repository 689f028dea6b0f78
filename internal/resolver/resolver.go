// Package resolver maps a playback time onto a transcript: which sentence is
// current, which word inside it, and where that word sits in the sentence
// text.
package resolver

import (
	"fmt"
	"math"
	"strings"

	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// PastEndPolicy decides which sentence is shown once playback time is past
// the last sentence
type PastEndPolicy int

const (
	// WrapToFirst selects sentence 0. This is the historical behaviour.
	WrapToFirst PastEndPolicy = iota
	// HoldLast keeps the last sentence on screen
	HoldLast
	// ShowNone clears the display
	ShowNone
)

func (p PastEndPolicy) String() string {
	switch p {
	case WrapToFirst:
		return "wrap"
	case HoldLast:
		return "hold"
	case ShowNone:
		return "none"
	default:
		return fmt.Sprintf("PastEndPolicy(%d)", int(p))
	}
}

// ParsePastEndPolicy parses "wrap", "hold" or "none"
func ParsePastEndPolicy(s string) (PastEndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wrap", "wrap-to-first":
		return WrapToFirst, nil
	case "hold", "hold-last":
		return HoldLast, nil
	case "none", "show-none":
		return ShowNone, nil
	default:
		return WrapToFirst, fmt.Errorf("unknown past-end policy %q", s)
	}
}

// Range locates the highlighted token inside Result.SentenceText.
// Start and Length count characters (runes); the Byte fields index the
// UTF-8 string directly.
type Range struct {
	Start      int `json:"start"`
	Length     int `json:"length"`
	ByteStart  int `json:"byte_start"`
	ByteLength int `json:"byte_length"`
}

// Result is the outcome of one resolution. SentenceIndex is -1 when no
// sentence is selected; Highlight is nil when no token is highlighted.
type Result struct {
	SentenceIndex int              `json:"sentence_index"`
	SentenceText  string           `json:"sentence_text"`
	WordIndex     int              `json:"word_index"`
	Word          *transcript.Word `json:"word,omitempty"`
	Highlight     *Range           `json:"highlight,omitempty"`
}

// None is the empty result
func None() Result {
	return Result{SentenceIndex: -1, WordIndex: -1}
}

// HasSentence reports whether a sentence was selected
func (r Result) HasSentence() bool {
	return r.SentenceIndex >= 0
}

// Equal reports whether two results would render identically
func (r Result) Equal(o Result) bool {
	if r.SentenceIndex != o.SentenceIndex || r.SentenceText != o.SentenceText || r.WordIndex != o.WordIndex {
		return false
	}
	if (r.Highlight == nil) != (o.Highlight == nil) {
		return false
	}
	return r.Highlight == nil || *r.Highlight == *o.Highlight
}

// Resolver resolves times against transcripts. The zero value uses
// WrapToFirst. A Resolver holds no mutable state and may be shared.
type Resolver struct {
	PastEnd PastEndPolicy
}

// New returns a Resolver with the given past-end policy
func New(policy PastEndPolicy) *Resolver {
	return &Resolver{PastEnd: policy}
}

// Resolve resolves time against t using the default policy
func Resolve(t *transcript.Transcript, time float64, priorIndex int) (Result, int) {
	return (&Resolver{}).Resolve(t, time, priorIndex)
}

// Resolve returns the result for time and the sentence index to pass as
// priorIndex on the next call. priorIndex only speeds up the lookup; the
// result depends on time alone.
func (r *Resolver) Resolve(t *transcript.Transcript, time float64, priorIndex int) (Result, int) {
	if t.IsEmpty() {
		return None(), 0
	}

	// NaN compares false against everything; treat it as before the start
	if math.IsNaN(time) {
		time = math.Inf(-1)
	}

	idx, ok := r.selectSentence(t, time, priorIndex)
	if !ok {
		return None(), 0
	}

	s := t.Sentence(idx)
	res := Result{
		SentenceIndex: idx,
		SentenceText:  s.Text,
		WordIndex:     -1,
	}

	words := t.WordsIn(idx)
	wi := selectWord(words, time)
	if wi < 0 {
		return res, idx
	}

	w := words[wi]
	res.WordIndex = wi
	res.Word = &w
	res.Highlight = HighlightRange(s.Text, words, wi)
	return res, idx
}

// selectSentence returns the first sentence containing time, else the first
// starting after time, else the policy fallback. ok is false when the
// policy selects nothing.
func (r *Resolver) selectSentence(t *transcript.Transcript, time float64, hint int) (int, bool) {
	if hint >= 0 && hint < t.Len() {
		s := t.Sentence(hint)
		if time >= s.Start && time <= s.End && t.EndsBefore(hint, time) {
			return hint, true
		}
	}

	after := t.FirstStartAfter(time)

	// Sentences before `after` all start at or before time; the earliest of
	// them whose end reaches time contains it.
	if first := t.FirstEndAtOrAfter(time); first < after {
		return first, true
	}
	if after < t.Len() {
		return after, true
	}

	switch r.PastEnd {
	case HoldLast:
		return t.Len() - 1, true
	case ShowNone:
		return -1, false
	default:
		return 0, true
	}
}

// selectWord picks the first word containing time, else the first word
// starting after time, else the last word. It returns -1 for no words.
func selectWord(words []transcript.Word, time float64) int {
	if len(words) == 0 {
		return -1
	}
	for i, w := range words {
		if time >= w.Start && time <= w.End {
			return i
		}
	}
	for i, w := range words {
		if w.Start > time {
			return i
		}
	}
	return len(words) - 1
}

package transcript

import (
	"math"
	"sort"
)

// Transcript is an immutable, time-sorted set of sentences and words.
// It is safe for concurrent use once built.
type Transcript struct {
	sentences []Sentence
	words     []Word

	// members[i] holds the words contained in sentences[i]
	members [][]Word

	// maxEnd[i] is the largest End among sentences[0..i]
	maxEnd []float64

	stats Stats
}

// Empty returns a transcript with no sentences or words
func Empty() *Transcript {
	return &Transcript{}
}

// Build validates and sorts the input rows. Invalid rows are dropped rather
// than failing the build; ErrMalformedInput is only returned when the input
// had rows and none survived. The returned transcript is never nil.
func Build(words []WordInput, sentences []SentenceInput) (*Transcript, error) {
	t := &Transcript{
		words:     make([]Word, 0, len(words)),
		sentences: make([]Sentence, 0, len(sentences)),
	}

	for _, w := range words {
		if !validRange(w.Start, w.End) {
			t.stats.DroppedWords++
			continue
		}
		t.words = append(t.words, w)
	}
	for _, s := range sentences {
		if !validRange(s.Start, s.End) {
			t.stats.DroppedSentences++
			continue
		}
		t.sentences = append(t.sentences, s)
	}

	sort.SliceStable(t.words, func(i, j int) bool { return t.words[i].Start < t.words[j].Start })
	sort.SliceStable(t.sentences, func(i, j int) bool { return t.sentences[i].Start < t.sentences[j].Start })

	t.index()

	t.stats.Words = len(t.words)
	t.stats.Sentences = len(t.sentences)

	if len(words)+len(sentences) > 0 && len(t.words)+len(t.sentences) == 0 {
		return t, &MalformedInputError{
			DroppedWords:     t.stats.DroppedWords,
			DroppedSentences: t.stats.DroppedSentences,
		}
	}
	return t, nil
}

func validRange(start, end float64) bool {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return false
	}
	return start >= 0 && start <= end
}

// index precomputes per-sentence membership and the running maximum of
// sentence end times
func (t *Transcript) index() {
	t.members = make([][]Word, len(t.sentences))
	t.maxEnd = make([]float64, len(t.sentences))

	running := math.Inf(-1)
	for i, s := range t.sentences {
		t.members[i] = WordsOf(s, t.words)
		if s.End > running {
			running = s.End
		}
		t.maxEnd[i] = running

		if i > 0 && s.Start < t.maxEnd[i-1] {
			t.stats.Overlapping = true
		}
	}
}

// WordsOf returns the words fully contained in s, in the order of words.
// words must be sorted by Start.
func WordsOf(s Sentence, words []Word) []Word {
	// Contained words start inside [s.Start, s.End], so only that window
	// of the sorted slice needs checking.
	lo := sort.Search(len(words), func(i int) bool { return words[i].Start >= s.Start })
	hi := sort.Search(len(words), func(i int) bool { return words[i].Start > s.End })

	var out []Word
	for _, w := range words[lo:hi] {
		if s.Contains(w) {
			out = append(out, w)
		}
	}
	return out
}

// Len returns the number of sentences
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.sentences)
}

// IsEmpty reports whether the transcript has no sentences
func (t *Transcript) IsEmpty() bool {
	return t.Len() == 0
}

// Sentence returns the i-th sentence in time order
func (t *Transcript) Sentence(i int) Sentence {
	return t.sentences[i]
}

// WordsIn returns the words contained in the i-th sentence.
// The returned slice must not be modified.
func (t *Transcript) WordsIn(i int) []Word {
	return t.members[i]
}

// Sentences returns a copy of the sentences in time order
func (t *Transcript) Sentences() []Sentence {
	if t == nil {
		return nil
	}
	return append([]Sentence(nil), t.sentences...)
}

// Words returns a copy of the words in time order
func (t *Transcript) Words() []Word {
	if t == nil {
		return nil
	}
	return append([]Word(nil), t.words...)
}

// Stats returns build statistics
func (t *Transcript) Stats() Stats {
	if t == nil {
		return Stats{}
	}
	return t.stats
}

// Overlapping reports whether any two sentences overlap in time. Resolution
// still follows first-match order in that case, but which sentence "owns"
// the overlap is not meaningful.
func (t *Transcript) Overlapping() bool {
	return t.Stats().Overlapping
}

// Duration returns the largest sentence end time
func (t *Transcript) Duration() float64 {
	if t.IsEmpty() {
		return 0
	}
	return t.maxEnd[len(t.maxEnd)-1]
}

// FirstStartAfter returns the index of the first sentence whose Start is
// strictly greater than time, or Len() if there is none
func (t *Transcript) FirstStartAfter(time float64) int {
	return sort.Search(len(t.sentences), func(i int) bool { return t.sentences[i].Start > time })
}

// FirstEndAtOrAfter returns the smallest index whose End is >= time, or
// Len() if there is none
func (t *Transcript) FirstEndAtOrAfter(time float64) int {
	return sort.Search(len(t.maxEnd), func(i int) bool { return t.maxEnd[i] >= time })
}

// EndsBefore reports whether every sentence before index i ends before time
func (t *Transcript) EndsBefore(i int, time float64) bool {
	return i == 0 || t.maxEnd[i-1] < time
}

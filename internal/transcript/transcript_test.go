package transcript

import (
	"errors"
	"math"
	"testing"
)

func TestBuild_SortsInput(t *testing.T) {
	words := []WordInput{
		{Text: "world", Start: 1, End: 2},
		{Text: "hello", Start: 0, End: 1},
	}
	sentences := []SentenceInput{
		{Text: "second", Start: 5, End: 6},
		{Text: "hello world", Start: 0, End: 2},
	}

	tr, err := Build(words, sentences)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if tr.Len() != 2 {
		t.Fatalf("Expected 2 sentences, got %d", tr.Len())
	}
	if tr.Sentence(0).Text != "hello world" {
		t.Errorf("Expected first sentence 'hello world', got '%s'", tr.Sentence(0).Text)
	}
	got := tr.Words()
	if got[0].Text != "hello" || got[1].Text != "world" {
		t.Errorf("Expected words sorted by start, got %v", got)
	}
}

func TestBuild_DropsInvalidRows(t *testing.T) {
	words := []WordInput{
		{Text: "ok", Start: 0, End: 1},
		{Text: "inverted", Start: 2, End: 1},
		{Text: "negative", Start: -1, End: 1},
		{Text: "nan", Start: math.NaN(), End: 1},
		{Text: "inf", Start: 0, End: math.Inf(1)},
	}
	sentences := []SentenceInput{
		{Text: "ok", Start: 0, End: 1},
		{Text: "bad", Start: 3, End: 2},
	}

	tr, err := Build(words, sentences)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	stats := tr.Stats()
	if stats.Words != 1 {
		t.Errorf("Expected 1 word kept, got %d", stats.Words)
	}
	if stats.DroppedWords != 4 {
		t.Errorf("Expected 4 words dropped, got %d", stats.DroppedWords)
	}
	if stats.Sentences != 1 || stats.DroppedSentences != 1 {
		t.Errorf("Expected 1 sentence kept and 1 dropped, got %+v", stats)
	}
}

func TestBuild_ZeroLengthRangeIsValid(t *testing.T) {
	tr, err := Build([]WordInput{{Text: "a", Start: 1, End: 1}}, []SentenceInput{{Text: "a", Start: 1, End: 1}})
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(tr.WordsIn(0)) != 1 {
		t.Errorf("Expected instantaneous word to be contained, got %d words", len(tr.WordsIn(0)))
	}
}

func TestBuild_AllRowsInvalid(t *testing.T) {
	tr, err := Build(
		[]WordInput{{Text: "x", Start: 2, End: 1}},
		[]SentenceInput{{Text: "y", Start: -3, End: 1}},
	)
	if err == nil {
		t.Fatal("Expected error when every row is rejected")
	}
	if !errors.Is(err, ErrMalformedInput) {
		t.Errorf("Expected ErrMalformedInput, got %v", err)
	}

	var mErr *MalformedInputError
	if !errors.As(err, &mErr) || mErr.DroppedWords != 1 || mErr.DroppedSentences != 1 {
		t.Errorf("Expected counts in MalformedInputError, got %v", err)
	}

	if tr == nil || !tr.IsEmpty() {
		t.Error("Expected a non-nil empty transcript")
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	tr, err := Build(nil, nil)
	if err != nil {
		t.Errorf("Expected no error for empty input, got %v", err)
	}
	if !tr.IsEmpty() {
		t.Error("Expected empty transcript")
	}
	if tr.Duration() != 0 {
		t.Errorf("Expected duration 0, got %f", tr.Duration())
	}
}

func TestWordsOf(t *testing.T) {
	words := []Word{
		{Text: "before", Start: 0, End: 0.9},
		{Text: "straddle", Start: 0.9, End: 1.1},
		{Text: "in", Start: 1, End: 1.5},
		{Text: "edge", Start: 1.5, End: 2},
		{Text: "late", Start: 1.9, End: 2.1},
		{Text: "after", Start: 2, End: 3},
	}
	s := Sentence{Text: "in edge", Start: 1, End: 2}

	got := WordsOf(s, words)
	if len(got) != 2 {
		t.Fatalf("Expected 2 contained words, got %d: %v", len(got), got)
	}
	if got[0].Text != "in" || got[1].Text != "edge" {
		t.Errorf("Expected [in edge], got %v", got)
	}
}

func TestTranscript_Overlapping(t *testing.T) {
	touching, _ := Build(nil, []SentenceInput{
		{Text: "a", Start: 0, End: 1},
		{Text: "b", Start: 1, End: 2},
	})
	if touching.Overlapping() {
		t.Error("Expected touching sentences not to be reported as overlapping")
	}

	overlapping, _ := Build(nil, []SentenceInput{
		{Text: "a", Start: 0, End: 5},
		{Text: "b", Start: 1, End: 2},
	})
	if !overlapping.Overlapping() {
		t.Error("Expected overlapping sentences to be reported")
	}
}

func TestTranscript_SearchHelpers(t *testing.T) {
	tr, _ := Build(nil, []SentenceInput{
		{Text: "a", Start: 0, End: 10},
		{Text: "b", Start: 2, End: 3},
		{Text: "c", Start: 12, End: 14},
	})

	if got := tr.FirstStartAfter(2); got != 2 {
		t.Errorf("Expected FirstStartAfter(2) = 2, got %d", got)
	}
	if got := tr.FirstEndAtOrAfter(11); got != 2 {
		t.Errorf("Expected FirstEndAtOrAfter(11) = 2, got %d", got)
	}
	if got := tr.FirstEndAtOrAfter(2.5); got != 0 {
		t.Errorf("Expected FirstEndAtOrAfter(2.5) = 0, got %d", got)
	}
	if tr.EndsBefore(1, 2.5) {
		t.Error("Expected sentence 0 to still be running at 2.5")
	}
	if tr.Duration() != 14 {
		t.Errorf("Expected duration 14, got %f", tr.Duration())
	}
}

package resolver

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// token is one whitespace-separated piece of sentence text
type token struct {
	text      string
	start     int // rune offset
	byteStart int
}

// tokenize splits text on every whitespace character. Consecutive
// separators yield empty tokens, so each token starts exactly one rune
// after the end of the previous one.
func tokenize(text string) []token {
	var (
		tokens    []token
		start     int
		byteStart int
		runes     int
	)
	for i, r := range text {
		if unicode.IsSpace(r) {
			tokens = append(tokens, token{text: text[byteStart:i], start: start, byteStart: byteStart})
			start = runes + 1
			byteStart = i + utf8.RuneLen(r)
		}
		runes++
	}
	return append(tokens, token{text: text[byteStart:], start: start, byteStart: byteStart})
}

// matchKey strips leading and trailing punctuation from a token
func matchKey(s string) string {
	return strings.TrimFunc(s, unicode.IsPunct)
}

// HighlightRange locates words[selected] inside text. When the same word
// text appears several times, the k-th timed occurrence is mapped to the
// k-th textual occurrence, which assumes word order matches text order.
// It returns nil when no token matches.
func HighlightRange(text string, words []transcript.Word, selected int) *Range {
	if selected < 0 || selected >= len(words) {
		return nil
	}
	target := words[selected]

	occurrence := 0
	for _, w := range words {
		if strings.EqualFold(w.Text, target.Text) && w.Start <= target.Start {
			occurrence++
		}
	}

	seen := 0
	for _, tok := range tokenize(text) {
		if !strings.EqualFold(matchKey(tok.text), target.Text) {
			continue
		}
		if seen == occurrence-1 {
			return &Range{
				Start:      tok.start,
				Length:     utf8.RuneCountInString(tok.text),
				ByteStart:  tok.byteStart,
				ByteLength: len(tok.text),
			}
		}
		seen++
	}
	return nil
}

// Split returns the text before, inside and after r
func (r Range) Split(text string) (before, match, after string) {
	end := r.ByteStart + r.ByteLength
	if r.ByteStart < 0 || end > len(text) || r.ByteStart > end {
		return text, "", ""
	}
	return text[:r.ByteStart], text[r.ByteStart:end], text[end:]
}

// Package render applies a resolution result to its sentence text for
// display.
package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lexiqai/transcript-sync/internal/resolver"
)

// Renderer turns a result into displayable text
type Renderer interface {
	Render(r resolver.Result) string
}

// Brackets marks the highlighted token with plain-text delimiters
type Brackets struct {
	Open  string
	Close string
}

// NewBrackets returns a renderer using "[" and "]"
func NewBrackets() Brackets {
	return Brackets{Open: "[", Close: "]"}
}

// Render implements Renderer
func (b Brackets) Render(r resolver.Result) string {
	if !r.HasSentence() {
		return ""
	}
	if r.Highlight == nil {
		return r.SentenceText
	}
	before, match, after := r.Highlight.Split(r.SentenceText)
	if match == "" {
		return r.SentenceText
	}
	return before + b.Open + match + b.Close + after
}

// Terminal styles the highlighted token for ANSI terminals. Colours are
// dropped automatically when the output is not a terminal.
type Terminal struct {
	Text      lipgloss.Style
	Highlight lipgloss.Style
}

// NewTerminal returns the default black-on-yellow highlight style
func NewTerminal() *Terminal {
	return &Terminal{
		Text: lipgloss.NewStyle(),
		Highlight: lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("11")).
			Bold(true),
	}
}

// Render implements Renderer
func (t *Terminal) Render(r resolver.Result) string {
	if !r.HasSentence() {
		return ""
	}
	if r.Highlight == nil {
		return t.Text.Render(r.SentenceText)
	}
	before, match, after := r.Highlight.Split(r.SentenceText)
	if match == "" {
		return t.Text.Render(r.SentenceText)
	}
	return t.Text.Render(before) + t.Highlight.Render(match) + t.Text.Render(after)
}

package transcript

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Document is the native transcript layout
type Document struct {
	Words     []Word     `json:"words" yaml:"words"`
	Sentences []Sentence `json:"sentences" yaml:"sentences"`
}

// Document returns the kept rows of t in start order
func (t *Transcript) Document() Document {
	doc := Document{Words: t.Words(), Sentences: t.Sentences()}
	if doc.Words == nil {
		doc.Words = []Word{}
	}
	if doc.Sentences == nil {
		doc.Sentences = []Sentence{}
	}
	return doc
}

// EncodeJSON writes t in the native layout as indented JSON
func EncodeJSON(t *Transcript) ([]byte, error) {
	return json.MarshalIndent(t.Document(), "", "  ")
}

// EncodeYAML writes t in the native layout as YAML
func EncodeYAML(t *Transcript) ([]byte, error) {
	return yaml.Marshal(t.Document())
}

package model

// Fact is an atomic, source-traceable claim
type Fact struct {
	ID          string         `json:"id" yaml:"id"`
	Kind        FactKind       `json:"kind" yaml:"kind"`
	Content     string         `json:"content" yaml:"content"`
	SourceQuote string         `json:"source_quote" yaml:"source_quote"`
	Confidence  FactConfidence `json:"confidence" yaml:"confidence"`
	Sentence    int            `json:"sentence" yaml:"sentence"` // Sentence index in source (0-based), -1 if unknown
}

// FactKind categorizes the nature of the fact
type FactKind string

const (
	FactKindNumeric     FactKind = "numeric"
	FactKindEntity      FactKind = "entity"
	FactKindEvent       FactKind = "event"
	FactKindAttribution FactKind = "attribution"
)

// Valid reports whether k is one of the known kinds
func (k FactKind) Valid() bool {
	switch k {
	case FactKindNumeric, FactKindEntity, FactKindEvent, FactKindAttribution:
		return true
	}
	return false
}

// FactConfidence is the extractor's confidence in a fact
type FactConfidence string

const (
	ConfidenceHigh   FactConfidence = "high"
	ConfidenceMedium FactConfidence = "medium"
	ConfidenceLow    FactConfidence = "low"
)

// Valid reports whether c is one of the known confidence levels
func (c FactConfidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// FactSet is the ordered, immutable set of facts extracted from one source.
// It is the only permitted grounding for generated factual content.
type FactSet struct {
	OriginID string `json:"origin_id" yaml:"origin_id"`
	Facts    []Fact `json:"facts" yaml:"facts"`

	// Degraded is set when extraction failed and the set is empty for that reason
	Degraded bool `json:"degraded" yaml:"degraded"`

	// Dropped counts facts discarded because their quote was not found in the source
	Dropped int `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Len returns the number of facts
func (s FactSet) Len() int {
	return len(s.Facts)
}

// IsEmpty reports whether the set carries no facts
func (s FactSet) IsEmpty() bool {
	return len(s.Facts) == 0
}

// ByID looks up a fact by its id
func (s FactSet) ByID(id string) (Fact, bool) {
	for _, f := range s.Facts {
		if f.ID == id {
			return f, true
		}
	}
	return Fact{}, false
}

package domain

// RawReply is one unstructured message from a compensation thread.
// Text is never mutated after ingestion; Index is the reply's position
// in the ingested sequence and doubles as the record identifier.
type RawReply struct {
	Index int
	Text  string
}

type FieldKind string

const (
	KindSalary     FieldKind = "salary"
	KindRole       FieldKind = "role"
	KindLocation   FieldKind = "location"
	KindExperience FieldKind = "experience"
)

// Span is a [Start, End) byte range into the reply text the field
// was matched from. Kept for provenance/audit.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int { return s.End - s.Start }

// ValidFor reports whether the span is a well-formed range inside text.
func (s Span) ValidFor(text string) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= len(text)
}

// ExtractedField is one field candidate pulled out of a reply.
// Which payload fields are set depends on Kind:
//   - salary: Amount + Unit ("annual"/"hourly")
//   - experience: Amount (years) and/or Label (band)
//   - role, location: Label
type ExtractedField struct {
	Kind   FieldKind
	Span   Span
	Text   string // matched substring, as it appeared
	Amount float64
	Unit   string
	Label  string
}

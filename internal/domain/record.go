package domain

// Record is the structured result of one reply that yielded at least
// one field. At most one field per kind (the assembler resolves
// candidates). Immutable once built; corrections are appended as
// superseding records, never edited in place.
type Record struct {
	ID         int64 // storage row id, 0 until appended
	ReplyIndex int   // stable identifier, = RawReply.Index
	BatchID    string
	Fields     map[FieldKind]ExtractedField
	Excerpt    string // short cleaned slice of the reply, for audit
}

func (r Record) Field(k FieldKind) (ExtractedField, bool) {
	f, ok := r.Fields[k]
	return f, ok
}

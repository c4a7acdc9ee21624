// Package assemble merges a reply's field candidates into at most one
// Record, resolving per-kind conflicts with a fixed, testable policy.
package assemble

import (
	"compscan-engine/internal/domain"
	"compscan-engine/internal/extract"
)

const excerptMax = 200

// Resolve picks one candidate per kind: the longest matched span wins,
// ties broken by the earliest span start.
func Resolve(fields []domain.ExtractedField) map[domain.FieldKind]domain.ExtractedField {
	out := make(map[domain.FieldKind]domain.ExtractedField, 4)
	for _, f := range fields {
		cur, ok := out[f.Kind]
		if !ok || better(f, cur) {
			out[f.Kind] = f
		}
	}
	return out
}

func better(a, b domain.ExtractedField) bool {
	if a.Span.Len() != b.Span.Len() {
		return a.Span.Len() > b.Span.Len()
	}
	return a.Span.Start < b.Span.Start
}

// Assemble builds one Record for a reply that yielded at least one
// field. ok=false when fields is empty: the reply contributes no
// record, which is a normal outcome, not an error.
func Assemble(index int, text string, fields []domain.ExtractedField) (domain.Record, bool) {
	if len(fields) == 0 {
		return domain.Record{}, false
	}
	return domain.Record{
		ReplyIndex: index,
		Fields:     Resolve(fields),
		Excerpt:    extract.Excerpt(text, excerptMax),
	}, true
}

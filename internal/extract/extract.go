// Package extract pulls structured field candidates (salary, role,
// location, experience) out of free-text compensation replies.
//
// Recognizers are independent rule-based matchers over the same text;
// spans may overlap across kinds and every candidate is returned.
// Picking one value per kind is the assembler's job, which keeps
// extraction pure and testable in isolation.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"compscan-engine/internal/domain"
)

type Options struct {
	RoleKeywords  []string // extra title nouns from config
	LocationHints []string // extra gazetteer entries from config
}

type Extractor struct {
	titleRe *regexp.Regexp
	cities  []string
}

func New(opts Options) *Extractor {
	cities := make([]string, 0, len(cityGazetteer)+len(opts.LocationHints))
	cities = append(cities, cityGazetteer...)
	for _, h := range opts.LocationHints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cities = append(cities, h)
		}
	}

	return &Extractor{
		titleRe: buildTitleRe(opts.RoleKeywords),
		cities:  cities,
	}
}

// Extract returns every field candidate found in the reply. Empty or
// whitespace-only text yields an empty set, not an error; text that is
// not valid UTF-8 violates the contract and returns ErrInvalidInput.
// Pure: same text in, same candidates out.
func (e *Extractor) Extract(reply domain.RawReply) ([]domain.ExtractedField, error) {
	if !utf8.ValidString(reply.Text) {
		return nil, fmt.Errorf("reply %d: %w: text is not valid UTF-8", reply.Index, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(reply.Text) == "" {
		return nil, nil
	}

	var out []domain.ExtractedField
	out = append(out, e.salaries(reply.Text)...)
	out = append(out, e.experiences(reply.Text)...)
	out = append(out, e.roles(reply.Text)...)
	out = append(out, e.locations(reply.Text)...)

	// spans must reference valid offsets in the reply they came from
	kept := out[:0]
	for _, f := range out {
		if f.Span.ValidFor(reply.Text) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

package extract

import (
	"regexp"
	"strings"
	"unicode"

	"compscan-engine/internal/domain"
)

// Title nouns that anchor a role match. Config role_keywords extends this.
var titleNouns = []string{
	"engineer", "developer", "planner", "analyst", "manager", "scientist",
	"designer", "architect", "consultant", "accountant", "economist",
	"recruiter", "technician", "specialist", "coordinator", "director",
	"buyer", "forecaster", "administrator",
}

// Words allowed to extend a title leftward even when lowercase.
var roleModifiers = map[string]bool{
	"senior": true, "sr": true, "staff": true, "lead": true, "principal": true,
	"junior": true, "jr": true, "associate": true, "chief": true, "head": true,
	"supply": true, "chain": true, "demand": true, "logistics": true,
	"procurement": true, "sourcing": true, "inventory": true, "warehouse": true,
	"transportation": true, "operations": true, "ops": true,
	"software": true, "data": true, "systems": true, "network": true,
	"machine": true, "learning": true, "ml": true, "ai": true,
	"program": true, "product": true, "project": true,
	"financial": true, "business": true,
}

// Words that end leftward extension even when capitalized (sentence starts).
var roleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "as": true, "i": true, "my": true,
	"our": true, "am": true, "was": true, "is": true, "im": true, "i'm": true,
}

var roleLabels = []string{"job title:", "role:", "title:", "position:"}

// connector words that end a phrase-form title ("I'm a planner at Acme")
var phraseTerminators = map[string]bool{
	"at": true, "in": true, "for": true, "with": true, "and": true,
	"but": true, "who": true, "based": true, "making": true, "earning": true,
	"here": true, "now": true,
}

var rolePhraseRe = regexp.MustCompile(`(?i)\b(?:i'?\s?m|i am|work(?:ing)? as)\s+an?\s+`)

func buildTitleRe(extra []string) *regexp.Regexp {
	nouns := make([]string, 0, len(titleNouns)+len(extra))
	nouns = append(nouns, titleNouns...)
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			nouns = append(nouns, regexp.QuoteMeta(k))
		}
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(nouns, "|") + `)s?\b`)
}

func (e *Extractor) roles(text string) []domain.ExtractedField {
	var out []domain.ExtractedField

	// labeled forms: "title: Senior Demand Planner"
	if start, end, ok := labeledValue(text, roleLabels, 60); ok {
		out = append(out, roleField(text, start, end))
	}

	// phrase forms: "I'm a supply chain analyst"
	for _, m := range rolePhraseRe.FindAllStringIndex(text, -1) {
		start := m[1]
		end := phraseEnd(text, start, 5)
		if end > start {
			out = append(out, roleField(text, start, end))
		}
	}

	// title nouns with leftward modifier expansion: "Senior Planner"
	for _, m := range e.titleRe.FindAllStringIndex(text, -1) {
		start := expandTitleLeft(text, m[0], 3)
		out = append(out, roleField(text, start, m[1]))
	}

	return out
}

func roleField(text string, start, end int) domain.ExtractedField {
	return domain.ExtractedField{
		Kind:  domain.KindRole,
		Span:  domain.Span{Start: start, End: end},
		Text:  text[start:end],
		Label: CleanText(text[start:end]),
	}
}

// phraseEnd walks forward over up to max words, stopping at clause
// punctuation. Returns start when no usable word follows.
func phraseEnd(text string, start int, max int) int {
	end := start
	words := 0
	i := start
	for i < len(text) && words < max {
		for i < len(text) && text[i] == ' ' {
			i++
		}
		w := i
		for i < len(text) && (isWordByte(text[i]) || text[i] == '-' || text[i] == '/') {
			i++
		}
		if i == w {
			break
		}
		if phraseTerminators[strings.ToLower(text[w:i])] {
			break
		}
		end = i
		words++
	}
	return end
}

// expandTitleLeft pulls in preceding modifier or capitalized words,
// separated from the match by plain spaces only.
func expandTitleLeft(text string, start int, max int) int {
	for n := 0; n < max; n++ {
		k := start
		for k > 0 && text[k-1] == ' ' {
			k--
		}
		if k == start {
			break // no space gap: start of text or punctuation
		}
		w := k
		for w > 0 && isWordByte(text[w-1]) {
			w--
		}
		if w == k {
			break
		}
		word := text[w:k]
		lower := strings.ToLower(word)
		if roleStopWords[lower] {
			break
		}
		if !roleModifiers[lower] && !startsUpper(word) {
			break
		}
		start = w
	}
	return start
}

func startsUpper(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsUpper(rune(s[0])) && len(s) > 1
}

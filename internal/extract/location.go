package extract

import (
	"regexp"
	"strings"

	"compscan-engine/internal/domain"
)

var locationLabels = []string{
	"location:", "locations:", "based in", "based out of", "located in",
	"living in", "working from",
}

// "Austin, TX" / "Dallas-Fort Worth, TX"
var cityStateRe = regexp.MustCompile(`\b([A-Z][A-Za-z.]+(?:[ -][A-Z][A-Za-z.]+)*),\s([A-Z]{2})\b`)

// Cities seen constantly in comp threads. Config location_hints extends this.
var cityGazetteer = []string{
	"new york", "nyc", "san francisco", "bay area", "los angeles",
	"chicago", "seattle", "austin", "dallas", "houston", "atlanta",
	"boston", "denver", "miami", "phoenix", "portland", "philadelphia",
	"minneapolis", "detroit", "charlotte", "nashville",
	"toronto", "vancouver", "montreal", "london", "dublin", "berlin",
	"amsterdam", "paris", "zurich", "singapore", "sydney", "bangalore",
	"remote",
}

func (e *Extractor) locations(text string) []domain.ExtractedField {
	var out []domain.ExtractedField

	if start, end, ok := labeledValue(text, locationLabels, 80); ok {
		// "based in Denver these days": keep the capitalized place name,
		// drop the trailing prose
		if e := trimToCapWords(text, start, end); e > start {
			out = append(out, locationField(text, start, e))
		}
	}

	for _, m := range cityStateRe.FindAllStringIndex(text, -1) {
		out = append(out, locationField(text, m[0], m[1]))
	}

	low := strings.ToLower(text)
	for _, city := range e.cities {
		from := 0
		for {
			i := strings.Index(low[from:], city)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(city)
			from = end
			if !wordBoundary(text, start, end) {
				continue
			}
			out = append(out, locationField(text, start, end))
		}
	}

	return out
}

// trimToCapWords returns the end of the run of capitalized words at
// start; lowercase place names are left to the gazetteer instead.
func trimToCapWords(text string, start, end int) int {
	i := start
	out := start
	for i < end {
		for i < end && text[i] == ' ' {
			i++
		}
		w := i
		for i < end && (isWordByte(text[i]) || text[i] == '.') {
			i++
		}
		if i == w {
			break
		}
		word := text[w:i]
		if word[0] < 'A' || word[0] > 'Z' {
			break
		}
		out = i
	}
	return out
}

func locationField(text string, start, end int) domain.ExtractedField {
	return domain.ExtractedField{
		Kind:  domain.KindLocation,
		Span:  domain.Span{Start: start, End: end},
		Text:  text[start:end],
		Label: normalizeLocation(text[start:end]),
	}
}

// normalizeLocation dedupes comma parts and tidies whitespace,
// e.g. "Chicago, chicago, IL" -> "Chicago, IL".
func normalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"compscan-engine/internal/domain"
)

const UnitYears = "years"

var yearsRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d+)?)\s*\+?\s*(years?|yrs?|yoe)\b`)

// Free-text experience bands. Bare "senior" is deliberately absent;
// it almost always belongs to a title ("Senior Planner").
var experienceBands = []string{
	"entry level",
	"entry-level",
	"new grad",
	"early career",
	"mid level",
	"mid-level",
	"mid career",
	"junior",
}

const maxYears = 60

func (e *Extractor) experiences(text string) []domain.ExtractedField {
	var out []domain.ExtractedField

	for _, m := range yearsRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]

		years, err := strconv.ParseFloat(text[m[2]:m[3]], 64)
		if err != nil || years <= 0 || years > maxYears {
			continue
		}

		out = append(out, domain.ExtractedField{
			Kind:   domain.KindExperience,
			Span:   domain.Span{Start: start, End: end},
			Text:   text[start:end],
			Amount: years,
			Unit:   UnitYears,
		})
	}

	low := strings.ToLower(text)
	for _, band := range experienceBands {
		from := 0
		for {
			i := strings.Index(low[from:], band)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(band)
			from = end
			if !wordBoundary(text, start, end) {
				continue
			}
			out = append(out, domain.ExtractedField{
				Kind:  domain.KindExperience,
				Span:  domain.Span{Start: start, End: end},
				Text:  text[start:end],
				Label: band,
			})
		}
	}

	return out
}

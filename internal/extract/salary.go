package extract

import (
	"regexp"
	"strconv"
	"strings"

	"compscan-engine/internal/domain"
)

const (
	UnitAnnual = "annual"
	UnitHourly = "hourly"
)

// Candidate amounts: "$95,000", "95,000", "80k", "$110000", "$42.50".
var salaryNumRe = regexp.MustCompile(`(?i)([$€£]\s*)?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(k)?\b`)

// Words that mark a bare number as compensation talk.
var salaryContextRe = regexp.MustCompile(`(?i)\b(base|comp|compensation|salary|salaries|pay|paid|tc|ote|total|earn|earning|earnings|making|package|offer)\b`)

var hourlyRe = regexp.MustCompile(`(?i)(/\s*(hr|hour)\b|\bper\s+hour\b|\ban\s+hour\b|\bhourly\b)`)

// plausibility bounds; matches outside them are dropped, never stored as zero
const (
	minAnnual = 10_000
	maxAnnual = 5_000_000
	maxHourly = 1_000
)

func (e *Extractor) salaries(text string) []domain.ExtractedField {
	var out []domain.ExtractedField

	for _, m := range salaryNumRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		hasCurrency := m[2] >= 0
		numStart, numEnd := m[4], m[5]
		hasK := m[6] >= 0

		raw := strings.ReplaceAll(text[numStart:numEnd], ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil || amount <= 0 {
			continue
		}
		if hasK {
			amount *= 1000
		}

		// bare numbers ("6", "2024") are not salaries without comp
		// context nearby and a plausible magnitude or an hourly marker
		if !hasCurrency && !hasK {
			if !contextNear(text, start, end) {
				continue
			}
			if amount < minAnnual && !hourlyNear(text, end) {
				continue
			}
		}

		unit := UnitAnnual
		if hourlyNear(text, end) {
			unit = UnitHourly
		}

		switch unit {
		case UnitHourly:
			if amount > maxHourly {
				continue
			}
		default:
			if amount < minAnnual || amount > maxAnnual {
				continue
			}
		}

		out = append(out, domain.ExtractedField{
			Kind:   domain.KindSalary,
			Span:   domain.Span{Start: start, End: end},
			Text:   strings.TrimSpace(text[start:end]),
			Amount: amount,
			Unit:   unit,
		})
	}

	return out
}

func contextNear(text string, start, end int) bool {
	lo := start - 40
	if lo < 0 {
		lo = 0
	}
	hi := end + 40
	if hi > len(text) {
		hi = len(text)
	}
	return salaryContextRe.MatchString(text[lo:hi])
}

func hourlyNear(text string, end int) bool {
	hi := end + 16
	if hi > len(text) {
		hi = len(text)
	}
	return hourlyRe.MatchString(text[end:hi])
}

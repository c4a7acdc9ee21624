package extract

import "strings"

func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Excerpt returns a cleaned slice of a reply, capped for audit storage.
func Excerpt(s string, max int) string {
	s = CleanText(s)
	if max > 0 && len(s) > max {
		cut := s[:max]
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		return cut
	}
	return s
}

func isWordByte(b byte) bool {
	return b == '_' || b == '\'' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// wordBoundary reports whether text[i:j] sits on whole-word boundaries.
func wordBoundary(text string, i, j int) bool {
	if i > 0 && isWordByte(text[i-1]) {
		return false
	}
	if j < len(text) && isWordByte(text[j]) {
		return false
	}
	return true
}

// labeledValue finds the first occurrence of any label (case-insensitive)
// and returns the span of the value that follows, cut at line/clause
// boundaries. ok=false when no label matches or the value is empty/too long.
func labeledValue(text string, labels []string, maxLen int) (start, end int, ok bool) {
	low := strings.ToLower(text)

	for _, lab := range labels {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		if !wordBoundary(text, i, i+len(lab)) {
			continue
		}

		start = i + len(lab)
		for start < len(text) && (text[start] == ' ' || text[start] == '\t') {
			start++
		}

		end = len(text)
		for _, cut := range []string{"\n", "\r", ",", ";", ".", " | ", " · "} {
			if j := strings.Index(text[start:end], cut); j >= 0 {
				end = start + j
			}
		}

		for end > start && (text[end-1] == ' ' || text[end-1] == '\t') {
			end--
		}

		if end <= start || end-start > maxLen {
			continue
		}
		return start, end, true
	}
	return 0, 0, false
}

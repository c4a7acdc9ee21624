package ingest

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// selectors that mark individual replies in common thread exports
var replySelectors = []string{
	".reply",
	".message",
	".comment",
	".post",
	"[data-testid='reply']",
	"article",
	"blockquote",
}

// htmlReplies splits an HTML thread export into one text per reply.
// Tries reply-container selectors first, then paragraphs, then the
// whole body as a single reply.
func htmlReplies(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	for _, sel := range replySelectors {
		texts := collectTexts(doc.Find(sel))
		if len(texts) > 0 {
			return texts, nil
		}
	}

	if texts := collectTexts(doc.Find("p")); len(texts) > 0 {
		return texts, nil
	}

	body := cleanHTMLText(doc.Find("body").Text())
	if body == "" {
		return nil, nil
	}
	return []string{body}, nil
}

func collectTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := cleanHTMLText(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func cleanHTMLText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

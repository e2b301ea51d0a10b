package extractor

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/creditmate/bankcrawler/internal/logging"
)

// extractWebpage strips scripts and styles and returns the visible text with
// collapsed whitespace. Parse trouble degrades to an empty string.
func extractWebpage(raw []byte, url string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		logging.Errorf("[extractor] html parse failed for %s: %v", url, err)
		return ""
	}

	doc.Find("script, style").Remove()
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, chunk := range strings.Split(strings.TrimSpace(line), "  ") {
			chunk = strings.TrimSpace(chunk)
			if chunk != "" {
				out = append(out, chunk)
			}
		}
	}
	return strings.Join(out, "\n")
}

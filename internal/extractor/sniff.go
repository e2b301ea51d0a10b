package extractor

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/creditmate/bankcrawler/internal/models"
)

// sniffContentType detects the content type from the byte signature when the
// declared type is missing or wrong.
func sniffContentType(raw []byte) (models.ContentType, bool) {
	if bytes.HasPrefix(raw, []byte("%PDF-")) {
		return models.ContentTypePDF, true
	}

	mime := http.DetectContentType(raw)
	switch {
	case strings.HasPrefix(mime, "application/pdf"):
		return models.ContentTypePDF, true
	case strings.HasPrefix(mime, "text/html"):
		return models.ContentTypeWebpage, true
	case strings.HasPrefix(mime, "image/"):
		return models.ContentTypeImage, true
	case strings.HasPrefix(mime, "text/csv"):
		return models.ContentTypeCSV, true
	case strings.HasPrefix(mime, "text/plain") && looksLikeCSV(raw):
		return models.ContentTypeCSV, true
	}
	return "", false
}

// looksLikeCSV accepts plain text whose first lines carry a consistent comma count.
func looksLikeCSV(raw []byte) bool {
	lines := bytes.SplitN(raw, []byte{'\n'}, 4)
	if len(lines) < 2 {
		return false
	}
	first := bytes.Count(lines[0], []byte{','})
	if first == 0 {
		return false
	}
	for _, line := range lines[1:] {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, []byte{','}) != first {
			return false
		}
	}
	return true
}

package extractor

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/creditmate/bankcrawler/internal/logging"
)

// extractCSV renders an arbitrary CSV as an aligned text table so the LLM sees
// columns lined up the way a human would read them. Parse failures degrade to
// an empty string.
func extractCSV(raw []byte, url string) string {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		if err != nil {
			logging.Errorf("[extractor] csv parse failed for %s: %v", url, err)
		}
		return ""
	}

	widths := columnWidths(rows)
	var sb strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			if pad := widths[i] - len(cell); pad > 0 && i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", pad))
			}
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

func columnWidths(rows [][]string) []int {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

package extractor

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// extractCSV renders each data row as "[Row i] header: value, ..." with
// row 0 as headers. Malformed CSV falls back to the raw decoded text.
func extractCSV(content []byte) string {
	text := decodeText(content)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		return text
	}

	headers := rows[0]
	var lines []string
	for i, row := range rows[1:] {
		var cells []string
		for j, value := range row {
			if strings.TrimSpace(value) == "" {
				continue
			}
			header := fmt.Sprintf("Column %d", j+1)
			if j < len(headers) {
				header = headers[j]
			}
			cells = append(cells, fmt.Sprintf("%s: %s", header, value))
		}
		if len(cells) > 0 {
			lines = append(lines, fmt.Sprintf("[Row %d] %s", i+1, strings.Join(cells, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}

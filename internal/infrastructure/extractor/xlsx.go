package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX renders spreadsheet rows the same way as CSV, one section
// per sheet. A workbook that cannot be opened falls back to best-effort
// text decoding rather than failing the ingestion.
func extractXLSX(content []byte) string {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		slog.Warn("xlsx open failed, attempting plain text", "error", err)
		return decodeText(content)
	}
	defer book.Close()

	var lines []string
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		headers := rows[0]
		for i, row := range rows[1:] {
			var cells []string
			for j, value := range row {
				if strings.TrimSpace(value) == "" {
					continue
				}
				header := fmt.Sprintf("Column %d", j+1)
				if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
					header = headers[j]
				}
				cells = append(cells, fmt.Sprintf("%s: %s", header, value))
			}
			if len(cells) > 0 {
				lines = append(lines, fmt.Sprintf("[%s Row %d] %s", sheet, i+1, strings.Join(cells, ", ")))
			}
		}
	}
	return strings.Join(lines, "\n")
}

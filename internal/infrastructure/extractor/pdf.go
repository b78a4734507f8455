package extractor

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docintel/docintel/internal/core/domain"
)

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "open pdf", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		pageText, err := extractPDFPage(reader, pageNum)
		if err != nil {
			// Partial extraction is acceptable; a broken page is
			// skipped, not fatal.
			slog.Warn("pdf page extraction failed", "page", pageNum, "error", err)
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", pageNum, pageText))
	}
	return strings.Join(parts, "\n\n"), nil
}

func extractPDFPage(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", pageNum, r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing content", pageNum)
	}
	return page.GetPlainText(nil)
}

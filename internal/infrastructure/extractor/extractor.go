// Package extractor converts raw upload bytes into plain text, keyed by
// the filename's extension. Extraction prefers degraded output over
// failure: unknown formats and malformed structured files fall back to
// best-effort text decoding so ingestion stays resilient.
package extractor

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

const defaultMaxChars = 50000

type Extractor struct {
	maxChars int
}

func New(maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{maxChars: maxChars}
}

func (e *Extractor) Extract(_ context.Context, filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var err error
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".txt":
		text = decodeText(content)
	case ".csv":
		text = extractCSV(content)
	case ".json":
		text = extractJSON(content)
	case ".xlsx":
		text = extractXLSX(content)
	default:
		slog.Warn("unknown file extension, attempting plain text", "filename", filename, "ext", ext)
		text = decodeText(content)
	}
	if err != nil {
		return "", err
	}

	return e.cap(strings.TrimSpace(text)), nil
}

// cap truncates positionally at the configured ceiling, keeping the
// head. Truncation is silent: downstream cost is bounded, not reported.
func (e *Extractor) cap(text string) string {
	runes := []rune(text)
	if len(runes) <= e.maxChars {
		return text
	}
	return string(runes[:e.maxChars])
}

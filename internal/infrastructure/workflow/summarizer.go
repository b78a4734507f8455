// Package workflow calls an external automation webhook (an n8n-style
// workflow) to produce document summaries. The webhook response shape
// is operator-defined, so decoding probes the common layouts.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docintel/docintel/internal/core/domain"
)

// answerKeys are the response fields workflows commonly put their
// output under, probed in order.
var answerKeys = []string{"output", "response", "text", "answer", "message", "result", "summary"}

type Summarizer struct {
	webhookURL string
	username   string
	password   string
	httpClient *http.Client
}

func New(webhookURL, username, password string, timeout time.Duration) *Summarizer {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Summarizer{
		webhookURL: strings.TrimSpace(webhookURL),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Summarizer) Configured() bool {
	return s.webhookURL != ""
}

func (s *Summarizer) Summarize(ctx context.Context, doc *domain.Document) (string, error) {
	if !s.Configured() {
		return "", domain.WrapError(domain.ErrNotConfigured, "workflow summary", fmt.Errorf("workflow webhook url is empty"))
	}

	body, err := json.Marshal(map[string]any{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"file_type":   doc.FileType,
		"char_count":  doc.CharCount,
	})
	if err != nil {
		return "", fmt.Errorf("marshal workflow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("workflow request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read workflow response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return "", fmt.Errorf("workflow status: %s: %s", resp.Status, msg)
		}
		return "", fmt.Errorf("workflow status: %s", resp.Status)
	}

	summary := extractSummary(respBody)
	if summary == "" {
		return "", fmt.Errorf("workflow returned no usable summary")
	}
	return summary, nil
}

func extractSummary(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return strings.TrimSpace(string(body))
	}
	return probeValue(decoded)
}

func probeValue(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		for _, key := range answerKeys {
			if nested, ok := typed[key]; ok {
				if text := probeValue(nested); text != "" {
					return text
				}
			}
		}
		return ""
	case []any:
		if len(typed) > 0 {
			return probeValue(typed[0])
		}
		return ""
	default:
		return ""
	}
}
